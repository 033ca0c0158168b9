package testutil

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
)

var (
	charDevs     map[string]uint32
	charDevsErr  error
	charDevsOnce sync.Once
)

// charDevices parses the "Character devices:" section of /proc/devices.
func charDevices() (map[string]uint32, error) {
	charDevsOnce.Do(func() {
		f, err := os.Open("/proc/devices")
		if err != nil {
			charDevsErr = err
			return
		}
		defer f.Close()

		charDevs = make(map[string]uint32)
		inChar := false
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := strings.TrimSpace(s.Text())
			switch {
			case line == "Character devices:":
				inChar = true
			case line == "Block devices:":
				inChar = false
			case inChar:
				num, name, ok := strings.Cut(line, " ")
				if !ok {
					continue
				}
				if major, err := strconv.ParseUint(num, 10, 32); err == nil {
					charDevs[name] = uint32(major)
				}
			}
		}
		charDevsErr = s.Err()
	})
	return charDevs, charDevsErr
}

// CharMajor returns the major number registered for a character device
// driver. The table is read once, so call it after the driver is loaded.
func CharMajor(t *testing.T, driver string) uint32 {
	t.Helper()
	devs, err := charDevices()
	if err != nil {
		t.Fatal(err)
	}
	major, ok := devs[driver]
	if !ok {
		t.Fatalf("no character device driver %q in /proc/devices", driver)
	}
	return major
}

func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("Test requires root.")
	}
}
