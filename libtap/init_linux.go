package libtap

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/moby/sys/mountinfo"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/nstap/nstap/internal/linux"
	"github.com/nstap/nstap/libtap/shm"
	"github.com/nstap/nstap/libtap/sysfs"
	"github.com/nstap/nstap/libtap/utils"
)

// IsInit reports whether the current process was started as a namespace
// worker. Binaries used as Config.InitPath must check this first thing
// and call Init.
func IsInit() bool {
	return len(os.Args) > 2 && os.Args[1] == "init" && os.Getenv(envInit) == "1"
}

// Init is the entry point of the namespace worker, executed after
// libtap/nsenter has joined the target's namespaces. It never returns.
func Init() {
	if err := startInitialization(); err != nil {
		// The parent forwards this through the log pipe if it got that
		// far; otherwise stderr is all there is.
		if logrus.StandardLogger().Out == os.Stderr {
			fmt.Fprintln(os.Stderr, err)
		} else {
			logrus.Error(err)
		}
		os.Exit(exitCodeOf(err))
	}
	os.Exit(0)
}

// Worker exit statuses. The parent maps them back to error kinds. The
// Go runtime exits with 2 on a panic or fatal error, so the specific
// kinds stay clear of it.
const (
	exitFailure           = 1
	exitInterfaceNotFound = 10
	exitMetadataMissing   = 11
)

func exitCodeOf(err error) int {
	switch {
	case errors.Is(err, sysfs.ErrInterfaceNotFound):
		return exitInterfaceNotFound
	case errors.Is(err, sysfs.ErrDeviceMetadataMissing):
		return exitMetadataMissing
	}
	return exitFailure
}

func envFile(name string) (*os.File, error) {
	fd, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return nil, fmt.Errorf("unable to convert %s: %w", name, err)
	}
	return os.NewFile(uintptr(fd), name), nil
}

func startInitialization() error {
	if levelStr := os.Getenv(envLogLevel); levelStr != "" {
		logLevel, err := strconv.Atoi(levelStr)
		if err != nil {
			return fmt.Errorf("unable to convert %s: %w", envLogLevel, err)
		}
		logrus.SetLevel(logrus.Level(logLevel))
	}
	logPipe, err := envFile(envLogPipe)
	if err != nil {
		return err
	}
	// Left open for Init to report the final error; exit closes it.
	logrus.SetOutput(logPipe)
	logrus.SetFormatter(new(logrus.JSONFormatter))
	logrus.Debug("namespace worker started")

	name := os.Args[2]
	if err := validateName(name); err != nil {
		return err
	}

	shmFile, err := envFile(envShm)
	if err != nil {
		return err
	}
	region, err := shm.Open(shmFile)
	if err != nil {
		shmFile.Close()
		return err
	}
	defer region.Close()

	// nsenter must have closed both namespace handles.
	fds, err := utils.NamespaceFds()
	if err != nil {
		return err
	}
	if len(fds) > 0 {
		return fmt.Errorf("namespace handles still open after joining: %v", fds)
	}

	if err := mountSysfs(sysfs.Root); err != nil {
		return err
	}
	dev, err := sysfs.Resolve(sysfs.Root, name)
	if err != nil {
		return describeLink(name, err)
	}
	region.Store(dev.Mkdev())
	logrus.Debugf("%s is character device %s", name, dev)
	return nil
}

// mountSysfs mounts a fresh sysfs over target. Mounted from inside the
// joined network namespace, it shows that namespace's devices.
func mountSysfs(target string) error {
	// Every mount stacked on target, not just the first one.
	onTarget := func(m *mountinfo.Info) (skip, stop bool) {
		return m.Mountpoint != target, false
	}
	before, err := mountinfo.GetMounts(onTarget)
	if err != nil {
		return fmt.Errorf("reading mountinfo: %w", err)
	}
	flags := uintptr(unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC | unix.MS_RDONLY)
	if err := linux.Mount("sysfs", target, "sysfs", flags, ""); err != nil {
		return err
	}
	after, err := mountinfo.GetMounts(onTarget)
	if err != nil {
		return fmt.Errorf("reading mountinfo: %w", err)
	}
	if len(after) != len(before)+1 || after[len(after)-1].FSType != "sysfs" {
		return fmt.Errorf("no new sysfs mount on %s after mounting", target)
	}
	return nil
}

// describeLink adds what netlink knows about name to a lookup failure,
// which usually means the interface exists but is not a macvtap.
func describeLink(name string, err error) error {
	if !errors.Is(err, sysfs.ErrInterfaceNotFound) {
		return err
	}
	link, lerr := netlink.LinkByName(name)
	if lerr != nil {
		return fmt.Errorf("%w (no link %s in the target network namespace: %v)", err, name, lerr)
	}
	return fmt.Errorf("%w (link %s has type %q, index %d)", err, name, link.Type(), link.Attrs().Index)
}
