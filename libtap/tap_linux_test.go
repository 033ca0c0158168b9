package libtap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateInvalidName(t *testing.T) {
	_, err := Create(context.Background(), Config{}, "a/b")
	if !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected ErrArgumentInvalid, got %v", err)
	}
}

func TestCreateInvalidConfig(t *testing.T) {
	c := Config{DiscoveryPath: "relative", DiscoveryArgs: []string{"nstap"}}
	_, err := Create(context.Background(), c, "tap0")
	if !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected ErrArgumentInvalid, got %v", err)
	}
}

func TestCreateInvalidDiscoveryOutput(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		DiscoveryPath: writeDiscovery(t, "echo nope"),
		DiscoveryArgs: []string{"nstap", "tap0"},
		WorkDir:       dir,
	}
	_, err := Create(context.Background(), c, "tap0")
	if !errors.Is(err, ErrInvalidDiscoveryOutput) {
		t.Fatalf("expected ErrInvalidDiscoveryOutput, got %v", err)
	}
	assertNoChildren(t)
	assertNoNode(t, dir)
}

func TestCreateTargetGone(t *testing.T) {
	dir := t.TempDir()
	c := Config{
		DiscoveryPath: writeDiscovery(t, "echo 1073741824\n"+drainStdin),
		DiscoveryArgs: []string{"nstap", "tap0"},
		WorkDir:       dir,
	}
	before := countFds(t)
	_, err := Create(context.Background(), c, "tap0")
	if !errors.Is(err, ErrNamespaceUnavailable) {
		t.Fatalf("expected ErrNamespaceUnavailable, got %v", err)
	}
	assertNoChildren(t)
	assertNoNode(t, dir)
	if after := countFds(t); after != before {
		t.Fatalf("fd leak: %d open before, %d after", before, after)
	}
}

func TestCreateDiscoveryFailsAfterPid(t *testing.T) {
	// The pid is fine but the child then exits non-zero; the handles
	// opened in the meantime must not leak.
	dir := t.TempDir()
	c := Config{
		DiscoveryPath: writeDiscovery(t, "echo $$\n"+drainStdin+"\nexit 4"),
		DiscoveryArgs: []string{"nstap", "tap0"},
		WorkDir:       dir,
	}
	before := countFds(t)
	_, err := Create(context.Background(), c, "tap0")
	if !errors.Is(err, ErrDiscoveryChildFailed) {
		t.Fatalf("expected ErrDiscoveryChildFailed, got %v", err)
	}
	assertNoChildren(t)
	assertNoNode(t, dir)
	if after := countFds(t); after != before {
		t.Fatalf("fd leak: %d open before, %d after", before, after)
	}
}

func assertNoNode(t *testing.T, dir string) {
	t.Helper()
	if _, err := os.Lstat(filepath.Join(dir, "tap-tap0")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("device node exists or cannot be checked: %v", err)
	}
}

func countFds(t *testing.T) int {
	t.Helper()
	ents, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatal(err)
	}
	return len(ents)
}
