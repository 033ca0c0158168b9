package libtap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"github.com/nstap/nstap/libtap/utils"
)

// Handles are open references to a target's user and network
// namespaces. They are owned by the process that opened them until they
// are handed to the namespace worker.
type Handles struct {
	User *os.File
	Net  *os.File

	// JoinUser is false when the target's user namespace is the
	// caller's own, in which case it must not be joined again: setns(2)
	// into one's current user namespace fails with EINVAL.
	JoinUser bool
}

// OpenHandles opens the user and network namespaces of pid, close-on-exec.
func OpenHandles(procRoot string, pid int) (_ *Handles, retErr error) {
	h := &Handles{}
	defer func() {
		if retErr != nil {
			h.Close()
		}
	}()

	var err error
	if h.User, err = openNamespace(procRoot, pid, "user", unix.CLONE_NEWUSER); err != nil {
		return nil, err
	}
	if h.Net, err = openNamespace(procRoot, pid, "net", unix.CLONE_NEWNET); err != nil {
		return nil, err
	}

	selfPath := filepath.Join(procRoot, "self", "ns", "user")
	self, err := netns.GetFromPath(selfPath)
	if err != nil {
		return nil, newError(ErrNamespaceUnavailable, "open "+selfPath, err)
	}
	defer self.Close()
	h.JoinUser = !self.Equal(handleOf(h.User))

	logrus.Debugf("pid %d: user namespace %s (join: %t), net namespace %s",
		pid, handleOf(h.User).UniqueId(), h.JoinUser, handleOf(h.Net).UniqueId())
	return h, nil
}

func handleOf(f *os.File) netns.NsHandle {
	return netns.NsHandle(f.Fd())
}

func openNamespace(procRoot string, pid int, kind string, nstype int) (*os.File, error) {
	path := filepath.Join(procRoot, strconv.Itoa(pid), "ns", kind)
	h, err := netns.GetFromPath(path)
	if err != nil {
		return nil, newError(ErrNamespaceUnavailable, "open "+path, err)
	}
	f := os.NewFile(uintptr(h), path)
	if err := checkNamespace(int(h), path, nstype); err != nil {
		f.Close()
		return nil, newError(ErrNamespaceUnavailable, "check "+path, err)
	}
	return f, nil
}

// checkNamespace makes sure fd is a namespace of the expected type,
// not something a bind mount or a bogus procRoot put in its place.
func checkNamespace(fd int, path string, nstype int) error {
	if err := utils.EnsureNsfsHandle(fd, path); err != nil {
		return err
	}
	got, err := unix.IoctlRetInt(fd, unix.NS_GET_NSTYPE)
	if err != nil {
		// NS_GET_NSTYPE appeared in Linux 4.11.
		if errors.Is(err, unix.ENOTTY) {
			return nil
		}
		return os.NewSyscallError("ioctl NS_GET_NSTYPE", err)
	}
	if got != nstype {
		return fmt.Errorf("%s has namespace type %#x, want %#x", path, got, nstype)
	}
	return nil
}

// Close releases both handles. It is safe to call more than once.
func (h *Handles) Close() error {
	var errs []error
	if h.User != nil {
		errs = append(errs, h.User.Close())
		h.User = nil
	}
	if h.Net != nil {
		errs = append(errs, h.Net.Close())
		h.Net = nil
	}
	return errors.Join(errs...)
}
