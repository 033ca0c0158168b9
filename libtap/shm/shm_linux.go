// Package shm implements a one-word memory region shared between a
// process and the children it starts, used to hand a single result back
// across a process boundary.
package shm

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nstap/nstap/internal/linux"
)

// Size is the number of bytes a Region exposes.
const Size = 8

// Region is a shared mapping of a memfd holding one uint64. The value
// is written by exactly one process and read by exactly one process
// after the writer has exited, so plain atomic loads and stores are
// all the synchronisation it needs.
type Region struct {
	file *os.File
	mem  []byte
}

// Create allocates a new zeroed region backed by a close-on-exec memfd.
// The memfd is meant to be handed to a child through exec.Cmd.ExtraFiles.
func Create(comment string) (*Region, error) {
	fd, err := unix.MemfdCreate(comment, unix.MFD_CLOEXEC)
	if err != nil {
		err := os.NewSyscallError("memfd_create", err)
		return nil, fmt.Errorf("failed to create shared region: %w", err)
	}
	file := os.NewFile(uintptr(fd), "/memfd:"+comment)
	if err := linux.Ftruncate(fd, Size); err != nil {
		file.Close()
		return nil, err
	}
	r, err := mmap(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// Open maps a region whose memfd was inherited from the parent.
func Open(file *os.File) (*Region, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(file.Fd()), &st); err != nil {
		return nil, &os.PathError{Op: "fstat", Path: file.Name(), Err: err}
	}
	if st.Size < Size {
		return nil, fmt.Errorf("shared region %s is %d bytes, need %d", file.Name(), st.Size, Size)
	}
	return mmap(file)
}

func mmap(file *os.File) (*Region, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &os.PathError{Op: "mmap", Path: file.Name(), Err: err}
	}
	return &Region{file: file, mem: mem}, nil
}

// File returns the memfd backing the region.
func (r *Region) File() *os.File {
	return r.file
}

func (r *Region) word() *uint64 {
	return (*uint64)(unsafe.Pointer(&r.mem[0]))
}

// Store writes v into the region.
func (r *Region) Store(v uint64) {
	atomic.StoreUint64(r.word(), v)
}

// Load returns the value currently held by the region.
func (r *Region) Load() uint64 {
	return atomic.LoadUint64(r.word())
}

// Close unmaps the region and closes the memfd. It is safe to call more
// than once.
func (r *Region) Close() error {
	var errs []error
	if r.mem != nil {
		errs = append(errs, os.NewSyscallError("munmap", unix.Munmap(r.mem)))
		r.mem = nil
	}
	if r.file != nil {
		errs = append(errs, r.file.Close())
		r.file = nil
	}
	return errors.Join(errs...)
}
