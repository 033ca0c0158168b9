//go:build !windows

package devices

import (
	"os"

	"golang.org/x/sys/unix"
)

// Testing dependencies
var unixLstat = unix.Lstat

// FromPath returns the device number of the character special file at
// path, without following a trailing symlink.
func FromPath(path string) (Number, error) {
	var stat unix.Stat_t
	if err := unixLstat(path, &stat); err != nil {
		return Number{}, err
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFCHR {
		return Number{}, &os.PathError{Op: "lstat", Path: path, Err: ErrNotCharDevice}
	}
	return FromMkdev(uint64(stat.Rdev)), nil //nolint:unconvert // Rdev is uint32 on e.g. MIPS.
}
