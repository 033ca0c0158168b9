package integration

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"github.com/nstap/nstap/internal/testutil"
	"github.com/nstap/nstap/libtap/utils"
)

// target is a process in its own user and network namespaces with a
// macvtap interface named tap0 on top of a dummy link.
type target struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newTarget(t *testing.T) *target {
	t.Helper()
	testutil.RequireRoot(t)
	cmd := exec.Command("/proc/self/exe")
	cmd.Env = append(os.Environ(), envTarget+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags:  syscall.CLONE_NEWUSER | syscall.CLONE_NEWNET,
		UidMappings: []syscall.SysProcIDMap{{ContainerID: 0, HostID: 0, Size: 1}},
		GidMappings: []syscall.SysProcIDMap{{ContainerID: 0, HostID: 0, Size: 1}},
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Skipf("unable to create user and network namespaces: %v", err)
	}
	tg := &target{cmd: cmd, stdin: stdin}
	t.Cleanup(tg.stop)

	ns, err := netns.GetFromPid(cmd.Process.Pid)
	if err != nil {
		t.Fatal(err)
	}
	defer ns.Close()
	nh, err := netlink.NewHandleAt(ns)
	if err != nil {
		t.Fatal(err)
	}
	defer nh.Delete()

	if err := nh.LinkAdd(&netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: "dummy0"}}); err != nil {
		t.Skipf("unable to create dummy link: %v", err)
	}
	parent, err := nh.LinkByName("dummy0")
	if err != nil {
		t.Fatal(err)
	}
	tap := &netlink.Macvtap{Macvlan: netlink.Macvlan{
		LinkAttrs: netlink.LinkAttrs{Name: "tap0", ParentIndex: parent.Attrs().Index},
		Mode:      netlink.MACVLAN_MODE_BRIDGE,
	}}
	if err := nh.LinkAdd(tap); err != nil {
		t.Skipf("unable to create macvtap link: %v", err)
	}
	return tg
}

func (tg *target) pid() int {
	return tg.cmd.Process.Pid
}

func (tg *target) stop() {
	tg.stdin.Close()
	_ = tg.cmd.Wait()
}

// writeDiscovery installs a discovery executable that reports its first
// argument as the target pid.
func writeDiscovery(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target-pid")
	script := "#!/bin/sh\necho \"$1\"\nwhile read -r _; do :; done\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func assertNoNamespaceFds(t *testing.T) {
	t.Helper()
	fds, err := utils.NamespaceFds()
	if err != nil {
		t.Fatal(err)
	}
	if len(fds) > 0 {
		t.Fatalf("namespace handles leaked: %v", fds)
	}
}

// assertNoChildren fails if anything other than the target is left
// unreaped.
func assertNoChildren(t *testing.T, tg *target) {
	t.Helper()
	var ws unix.WaitStatus
	pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
	if err != nil && !errors.Is(err, unix.ECHILD) {
		t.Fatal(err)
	}
	if pid != 0 && pid != tg.pid() && !errors.Is(err, unix.ECHILD) {
		t.Fatalf("child %d left unreaped", pid)
	}
}
