package devices

import (
	"errors"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrNotCharDevice is returned by FromPath when the path exists but is
// not a character special file.
var ErrNotCharDevice = errors.New("not a character device")

// Number is a (major, minor) character device number.
type Number struct {
	// Major is the device's major number.
	Major uint32 `json:"major"`

	// Minor is the device's minor number.
	Minor uint32 `json:"minor"`
}

// Valid reports whether both halves of the number are non-zero.
func (n Number) Valid() bool {
	return n.Major > 0 && n.Minor > 0
}

// Mkdev encodes n the way mknod(2) and stat(2) do.
func (n Number) Mkdev() uint64 {
	return unix.Mkdev(n.Major, n.Minor)
}

func (n Number) String() string {
	return strconv.FormatUint(uint64(n.Major), 10) + ":" + strconv.FormatUint(uint64(n.Minor), 10)
}

// FromMkdev decodes an encoded device number.
func FromMkdev(dev uint64) Number {
	return Number{Major: unix.Major(dev), Minor: unix.Minor(dev)}
}
