// Package sysfs resolves a macvtap interface name to the character
// device number the kernel assigned to it, by reading the uevent file
// of the interface's macvtap child under /sys.
package sysfs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sirupsen/logrus"

	"github.com/nstap/nstap/libtap/devices"
)

// Root is where the worker mounts its private sysfs instance.
const Root = "/sys"

// maxUeventSize bounds how much of a uevent file is read. Real macvtap
// uevent files are well under 100 bytes.
const maxUeventSize = 4096

var (
	// ErrInterfaceNotFound means the interface has no macvtap child.
	ErrInterfaceNotFound = errors.New("interface has no macvtap device")
	// ErrDeviceMetadataMissing means the uevent file lacks a usable
	// MAJOR or MINOR key.
	ErrDeviceMetadataMissing = errors.New("device metadata missing MAJOR or MINOR")
)

// MacvtapDir returns the directory holding the macvtap child of the
// named network interface, scoped to root.
func MacvtapDir(root, name string) (string, error) {
	return securejoin.SecureJoin(root, filepath.Join("devices/virtual/net", name, "macvtap"))
}

// UeventPath locates the uevent file of the single macvtap child of the
// named interface.
func UeventPath(root, name string) (string, error) {
	dir, err := MacvtapDir(root, name)
	if err != nil {
		return "", err
	}
	d, err := os.Open(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", dir, ErrInterfaceNotFound)
		}
		return "", err
	}
	defer d.Close()

	// Readdirnames never reports "." and "..".
	names, err := d.Readdirnames(-1)
	if err != nil {
		return "", &os.PathError{Op: "readdirnames", Path: dir, Err: err}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%s is empty: %w", dir, ErrInterfaceNotFound)
	}
	sort.Strings(names)
	if len(names) > 1 {
		logrus.Warnf("%s has %d entries, using %s", dir, len(names), names[0])
	}
	return filepath.Join(dir, names[0], "uevent"), nil
}

// Resolve returns the device number of the named interface's macvtap
// device.
func Resolve(root, name string) (devices.Number, error) {
	path, err := UeventPath(root, name)
	if err != nil {
		return devices.Number{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return devices.Number{}, fmt.Errorf("%s: %w", path, ErrInterfaceNotFound)
		}
		return devices.Number{}, err
	}
	defer f.Close()

	n, err := ParseUevent(io.LimitReader(f, maxUeventSize))
	if err != nil {
		return devices.Number{}, fmt.Errorf("%s: %w", path, err)
	}
	logrus.Debugf("%s: device %s", path, n)
	return n, nil
}

// ParseUevent extracts MAJOR and MINOR from uevent KEY=VALUE lines.
// Other keys and the order of lines do not matter.
func ParseUevent(r io.Reader) (devices.Number, error) {
	var (
		major, minor uint64
		err          error
	)
	s := bufio.NewScanner(r)
	for s.Scan() {
		key, value, ok := strings.Cut(s.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "MAJOR":
			major, err = parseNumber(key, value)
		case "MINOR":
			minor, err = parseNumber(key, value)
		}
		if err != nil {
			return devices.Number{}, err
		}
	}
	if err := s.Err(); err != nil {
		return devices.Number{}, err
	}
	if major == 0 || minor == 0 {
		return devices.Number{}, ErrDeviceMetadataMissing
	}
	return devices.Number{Major: uint32(major), Minor: uint32(minor)}, nil
}

func parseNumber(key, value string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("bad %s value %q: %w", key, value, ErrDeviceMetadataMissing)
	}
	return n, nil
}
