package libtap

import (
	"path/filepath"

	"github.com/moby/sys/userns"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"

	"github.com/nstap/nstap/internal/linux"
	"github.com/nstap/nstap/libtap/devices"
)

const nodePrefix = "tap-"

// NodeName is the file name of the device node created for interface name.
func NodeName(name string) string {
	return nodePrefix + name
}

// nodeMode is the mode requested for a new node; the umask applies.
const nodeMode = unix.S_IFCHR | 0o666

// mknod creates dir/tap-<name> as a character device for dev. An
// existing file of that name is an error and is left alone.
func mknod(dir, name string, dev devices.Number) (string, error) {
	path := filepath.Join(dir, NodeName(name))
	if err := linux.Mknod(path, nodeMode, dev.Mkdev()); err != nil {
		return "", newError(ErrNodeCreationFailed, "create device node", err)
	}
	return path, nil
}

// warnIfCannotMknod logs why mknod is likely to fail. It never fails
// itself: the kernel has the last word.
func warnIfCannotMknod() {
	caps, err := capability.NewPid2(0)
	if err == nil {
		err = caps.Load()
	}
	if err != nil {
		logrus.Debugf("unable to read own capabilities: %v", err)
	} else if !caps.Get(capability.EFFECTIVE, capability.CAP_MKNOD) {
		logrus.Warn("CAP_MKNOD is not in the effective set, creating the device node will probably fail")
	}
	if userns.RunningInUserNS() {
		logrus.Warn("running in a user namespace, the kernel may refuse to create device nodes")
	}
}
