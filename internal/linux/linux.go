package linux

import (
	"os"

	"golang.org/x/sys/unix"
)

// Getwd wraps [unix.Getwd].
func Getwd() (wd string, err error) {
	wd, err = retryOnEINTR2(unix.Getwd)
	return wd, os.NewSyscallError("getwd", err)
}

// Mknod wraps [unix.Mknod].
func Mknod(path string, mode uint32, dev uint64) error {
	err := retryOnEINTR(func() error {
		return unix.Mknod(path, mode, int(dev))
	})
	if err != nil {
		return &os.PathError{Op: "mknod", Path: path, Err: err}
	}
	return nil
}

// Mount wraps [unix.Mount].
func Mount(source, target, fstype string, flags uintptr, data string) error {
	err := retryOnEINTR(func() error {
		return unix.Mount(source, target, fstype, flags, data)
	})
	if err != nil {
		return &os.PathError{Op: "mount " + fstype, Path: target, Err: err}
	}
	return nil
}

// Ftruncate wraps [unix.Ftruncate].
func Ftruncate(fd int, length int64) error {
	err := retryOnEINTR(func() error {
		return unix.Ftruncate(fd, length)
	})
	return os.NewSyscallError("ftruncate", err)
}
