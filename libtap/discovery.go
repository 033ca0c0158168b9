package libtap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// discoveryBufSize is how much of the discovery output is read. A pid
// plus a newline fits comfortably.
const discoveryBufSize = 16

// Target is a pid reported by the discovery executable. The executable
// is kept running until Release is called, so that the pid cannot be
// recycled while its namespaces are being opened.
type Target struct {
	// Pid is the process owning the namespaces to join.
	Pid int

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	ctx    context.Context
	stop   func() bool
	done   bool
}

// Discover runs the discovery executable at path with argument vector
// argv (argv[0] included) and returns the pid it prints. The child gets
// an empty environment and the caller's stderr. On success the child is
// still running and the caller must call Release.
//
// The child runs in its own process group. Cancelling ctx kills the
// whole group and unblocks a pending read, even when a grandchild still
// holds the write end of stdout.
func Discover(ctx context.Context, path string, argv []string) (*Target, error) {
	cmd := exec.CommandContext(ctx, path)
	cmd.Args = argv
	cmd.Env = []string{}
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, newError(ErrDiscoveryIO, "create discovery stdin pipe", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, newError(ErrDiscoveryIO, "create discovery stdout pipe", err)
	}
	cmd.Stdout = stdoutW
	err = cmd.Start()
	// The child has its own copy now.
	stdoutW.Close()
	if err != nil {
		stdin.Close()
		stdoutR.Close()
		return nil, newError(ErrDiscoveryIO, "start "+path, err)
	}
	logrus.Debugf("started target discovery %s (pid %d)", path, cmd.Process.Pid)

	t := &Target{cmd: cmd, stdin: stdin, stdout: stdoutR, ctx: ctx}
	t.stop = context.AfterFunc(ctx, func() {
		_ = stdoutR.SetReadDeadline(time.Now())
	})
	pid, err := t.readPid()
	if err != nil {
		// The child is of no further use; reap it, but report why we
		// gave up on it rather than how it exited.
		if rerr := t.Release(); rerr != nil {
			logrus.Debugf("releasing failed target discovery: %v", rerr)
		}
		return nil, err
	}
	t.Pid = pid
	logrus.Debugf("target discovery reported pid %d", pid)
	return t, nil
}

func (t *Target) readPid() (int, error) {
	buf := make([]byte, discoveryBufSize)
	n, err := t.stdout.Read(buf)
	if n == 0 {
		// A cancelled context shows up as an empty or interrupted read.
		if cerr := t.ctx.Err(); cerr != nil {
			return 0, newError(ErrDiscoveryIO, "read discovery output", cerr)
		}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, newError(ErrDiscoveryIO, "read discovery output", err)
	}
	return parsePid(buf[:n])
}

// parsePid accepts ASCII decimal digits, optionally followed by
// whitespace. Signs and leading whitespace are rejected.
func parsePid(out []byte) (int, error) {
	op := "parse discovery output " + strconv.Quote(string(out))
	digits := bytes.TrimRight(out, " \t\n\v\f\r")
	if len(digits) == 0 {
		return 0, newError(ErrInvalidDiscoveryOutput, op, nil)
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, newError(ErrInvalidDiscoveryOutput, op, nil)
		}
	}
	pid, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, newError(ErrInvalidDiscoveryOutput, op, err)
	}
	if pid <= 0 {
		return 0, newError(ErrInvalidDiscoveryOutput, op, nil)
	}
	return pid, nil
}

// Release closes the parent's ends of both pipes, which tells a
// well-behaved discovery executable to exit, and reaps it. It is safe to
// call more than once; only the first call reports an error.
func (t *Target) Release() error {
	if t.done {
		return nil
	}
	t.done = true

	t.stop()
	t.stdin.Close()
	t.stdout.Close()
	err := t.cmd.Wait()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return newError(ErrDiscoveryChildFailed, "wait for target discovery", err)
	}
	return newError(ErrDiscoveryIO, "wait for target discovery", err)
}
