package libtap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nstap/nstap/libtap/devices"
	"github.com/nstap/nstap/libtap/logs"
	"github.com/nstap/nstap/libtap/shm"
)

// Environment variables understood by the namespace worker and by
// libtap/nsenter.
const (
	envInit     = "_NSTAP_INIT"
	envUserns   = "_NSTAP_USERNS_FD"
	envNetns    = "_NSTAP_NETNS_FD"
	envShm      = "_NSTAP_SHMFD"
	envLogPipe  = "_NSTAP_LOGPIPE"
	envLogLevel = "_NSTAP_LOGLEVEL"
)

// stdioFdCount is the number of stdio fds preceding ExtraFiles.
const stdioFdCount = 3

// worker is the parent's view of one namespace worker.
type worker struct {
	cmd *exec.Cmd
}

func newWorker(ctx context.Context, c *Config, name string) *worker {
	cmd := exec.CommandContext(ctx, c.InitPath)
	cmd.Args = []string{c.InitArgs0, "init", name}
	cmd.Env = []string{
		envInit + "=1",
		envLogLevel + "=" + strconv.Itoa(int(logrus.GetLevel())),
	}
	cmd.Stderr = os.Stderr
	return &worker{cmd: cmd}
}

// passFile hands f to the worker and advertises its fd number in env.
func (w *worker) passFile(env string, f *os.File) {
	w.cmd.ExtraFiles = append(w.cmd.ExtraFiles, f)
	fd := stdioFdCount + len(w.cmd.ExtraFiles) - 1
	w.cmd.Env = append(w.cmd.Env, env+"="+strconv.Itoa(fd))
}

// resolveInWorker starts a worker that joins the namespaces behind h,
// resolves name to a device number there and publishes it through a
// shared region, then waits for it. h is closed in every case: once the
// worker has started it owns its own copies of the handles.
func resolveInWorker(ctx context.Context, c *Config, h *Handles, name string) (_ devices.Number, retErr error) {
	defer func() {
		if err := h.Close(); err != nil && retErr == nil {
			retErr = newError(ErrNamespaceJoinFailed, "close namespace handles", err)
		}
	}()

	region, err := shm.Create("nstap-devnum")
	if err != nil {
		return devices.Number{}, newError(ErrNamespaceJoinFailed, "create shared region", err)
	}
	defer region.Close()

	logR, logW, err := os.Pipe()
	if err != nil {
		return devices.Number{}, newError(ErrNamespaceJoinFailed, "create log pipe", err)
	}

	w := newWorker(ctx, c, name)
	if h.JoinUser {
		w.passFile(envUserns, h.User)
	}
	w.passFile(envNetns, h.Net)
	w.passFile(envShm, region.File())
	w.passFile(envLogPipe, logW)

	err = w.cmd.Start()
	logW.Close()
	if err != nil {
		logR.Close()
		return devices.Number{}, newError(ErrNamespaceJoinFailed, "start namespace worker", err)
	}
	logrus.Debugf("started namespace worker (pid %d)", w.cmd.Process.Pid)
	if err := h.Close(); err != nil {
		logrus.Warnf("closing namespace handles: %v", err)
	}

	logsDone := logs.ForwardLogs(logR)
	waitErr := w.cmd.Wait()
	if err := <-logsDone; err != nil {
		logrus.Warnf("forwarding namespace worker logs: %v", err)
	}
	if waitErr != nil {
		kind := kindOfWorkerExit(waitErr)
		if kind != ErrNamespaceJoinFailed {
			// Still a worker failure, just a more specific one.
			waitErr = fmt.Errorf("%w: %w", ErrNamespaceJoinFailed, waitErr)
		}
		return devices.Number{}, newError(kind, "namespace worker", waitErr)
	}

	// The worker has exited, so its store is visible.
	dev := devices.FromMkdev(region.Load())
	if !dev.Valid() {
		return devices.Number{}, newError(ErrNamespaceJoinFailed, "read device number",
			fmt.Errorf("namespace worker published %s", dev))
	}
	return dev, nil
}

// kindOfWorkerExit maps the worker's exit status back to an error kind.
func kindOfWorkerExit(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case exitInterfaceNotFound:
			return ErrInterfaceNotFound
		case exitMetadataMissing:
			return ErrDeviceMetadataMissing
		}
	}
	return ErrNamespaceJoinFailed
}
