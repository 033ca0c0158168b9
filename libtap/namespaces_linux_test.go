package libtap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/nstap/nstap/libtap/utils"
)

func TestOpenHandlesSelf(t *testing.T) {
	before, err := utils.NamespaceFds()
	if err != nil {
		t.Fatal(err)
	}

	h, err := OpenHandles("/proc", os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	if h.JoinUser {
		t.Error("own user namespace marked for joining")
	}
	for _, f := range []*os.File{h.User, h.Net} {
		flags, err := unix.FcntlInt(f.Fd(), unix.F_GETFD, 0)
		if err != nil {
			t.Fatal(err)
		}
		if flags&unix.FD_CLOEXEC == 0 {
			t.Errorf("%s is not close-on-exec", f.Name())
		}
	}

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	after, err := utils.NamespaceFds()
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("namespace handles leaked: before %v, after %v", before, after)
	}
}

func TestOpenHandlesNoSuchProcess(t *testing.T) {
	before, err := utils.NamespaceFds()
	if err != nil {
		t.Fatal(err)
	}
	// Pids are capped well below this.
	_, err = OpenHandles("/proc", 1<<30)
	if !errors.Is(err, ErrNamespaceUnavailable) {
		t.Fatalf("expected ErrNamespaceUnavailable, got %v", err)
	}
	after, err := utils.NamespaceFds()
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("namespace handles leaked: before %v, after %v", before, after)
	}
}

func TestOpenHandlesWrongType(t *testing.T) {
	// A fake proc root whose "net" entry is really the user namespace,
	// and whose "user" entry is a plain file.
	root := t.TempDir()
	nsDir := filepath.Join(root, "42", "ns")
	if err := os.MkdirAll(nsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nsDir, "user"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := OpenHandles(root, 42)
	if !errors.Is(err, ErrNamespaceUnavailable) {
		t.Fatalf("plain file accepted as a namespace: %v", err)
	}

	if err := os.Remove(filepath.Join(nsDir, "user")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/proc/self/ns/user", filepath.Join(nsDir, "user")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/proc/self/ns/user", filepath.Join(nsDir, "net")); err != nil {
		t.Fatal(err)
	}
	_, err = OpenHandles(root, 42)
	if !errors.Is(err, ErrNamespaceUnavailable) {
		t.Fatalf("user namespace accepted as net namespace: %v", err)
	}
}
