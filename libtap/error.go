package libtap

import (
	"errors"

	"github.com/nstap/nstap/libtap/sysfs"
)

var (
	ErrArgumentInvalid        = errors.New("invalid argument")
	ErrDiscoveryIO            = errors.New("target discovery i/o failed")
	ErrInvalidDiscoveryOutput = errors.New("target discovery wrote an invalid pid")
	ErrDiscoveryChildFailed   = errors.New("target discovery exited unsuccessfully")
	ErrNamespaceUnavailable   = errors.New("target namespace unavailable")
	ErrNamespaceJoinFailed    = errors.New("joining target namespaces failed")
	ErrInterfaceNotFound      = sysfs.ErrInterfaceNotFound
	ErrDeviceMetadataMissing  = sysfs.ErrDeviceMetadataMissing
	ErrNodeCreationFailed     = errors.New("device node creation failed")
)

// Error records which low-level operation failed, the class of the
// failure (one of the Err* sentinels) and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func newError(kind error, op string, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

// Is makes errors.Is(err, ErrNamespaceJoinFailed) and friends work.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}
