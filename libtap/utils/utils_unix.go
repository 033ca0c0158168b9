//go:build !windows

package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// EnsureProcHandle returns whether or not the given file handle is on procfs.
func EnsureProcHandle(fh *os.File) error {
	var buf unix.Statfs_t
	if err := unix.Fstatfs(int(fh.Fd()), &buf); err != nil {
		return fmt.Errorf("ensure %s is on procfs: %w", fh.Name(), err)
	}
	if buf.Type != unix.PROC_SUPER_MAGIC {
		return fmt.Errorf("%s is not on procfs", fh.Name())
	}
	return nil
}

// EnsureNsfsHandle returns whether or not the given descriptor refers to
// a namespace file, as opened from /proc/<pid>/ns/<kind>.
func EnsureNsfsHandle(fd int, name string) error {
	var buf unix.Statfs_t
	if err := unix.Fstatfs(fd, &buf); err != nil {
		return fmt.Errorf("ensure %s is on nsfs: %w", name, err)
	}
	if buf.Type != unix.NSFS_MAGIC {
		return fmt.Errorf("%s is not on nsfs", name)
	}
	return nil
}

// NamespaceFds lists the descriptors of the calling process that refer
// to a namespace, keyed by descriptor with the readlink(2) target
// ("net:[4026531840]") as value.
func NamespaceFds() (map[int]string, error) {
	fdDir, err := os.Open("/proc/self/fd")
	if err != nil {
		return nil, err
	}
	defer fdDir.Close()

	if err := EnsureProcHandle(fdDir); err != nil {
		return nil, err
	}

	fdList, err := fdDir.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	fds := make(map[int]string)
	for _, fdStr := range fdList {
		fd, err := strconv.Atoi(fdStr)
		// Ignore non-numeric file names.
		if err != nil {
			continue
		}
		// The descriptor of fdDir itself, or one closed since the
		// listing was taken, cannot be resolved; skip it.
		target, err := os.Readlink("/proc/self/fd/" + fdStr)
		if err != nil {
			continue
		}
		if isNamespaceLink(target) {
			fds[fd] = target
		}
	}
	return fds, nil
}

// isNamespaceLink matches the "<kind>:[<inode>]" form the kernel uses
// for nsfs descriptors.
func isNamespaceLink(target string) bool {
	kind, rest, ok := strings.Cut(target, ":[")
	if !ok || kind == "" || strings.ContainsRune(kind, '/') || !strings.HasSuffix(rest, "]") {
		return false
	}
	_, err := strconv.ParseUint(strings.TrimSuffix(rest, "]"), 10, 64)
	return err == nil && kind != "pipe" && kind != "socket" && kind != "anon_inode"
}
