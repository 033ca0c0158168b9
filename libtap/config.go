package libtap

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nstap/nstap/internal/linux"
)

const (
	defaultProcRoot = "/proc"
	defaultInitPath = "/proc/self/exe"
)

// Config describes one invocation of Create.
type Config struct {
	// DiscoveryPath is the executable that prints the target pid.
	DiscoveryPath string

	// DiscoveryArgs is the complete argument vector handed to the
	// discovery executable, argv[0] included.
	DiscoveryArgs []string

	// DiscoveryTimeout bounds how long the discovery executable may take
	// to print the pid. Zero means no limit.
	DiscoveryTimeout time.Duration

	// ProcRoot is where procfs is mounted. Defaults to /proc.
	ProcRoot string

	// WorkDir is where the device node is created. Defaults to the
	// working directory at the time Create is called.
	WorkDir string

	// InitPath is the binary re-executed as the namespace worker. It must
	// import libtap/nsenter and call Init when IsInit reports true.
	// Defaults to /proc/self/exe.
	InitPath string

	// InitArgs0 is argv[0] of the namespace worker. Defaults to
	// DiscoveryArgs[0].
	InitArgs0 string
}

// setDefaults fills in every unset field that has a default.
func (c *Config) setDefaults() error {
	if c.ProcRoot == "" {
		c.ProcRoot = defaultProcRoot
	}
	if c.InitPath == "" {
		c.InitPath = defaultInitPath
	}
	if c.InitArgs0 == "" && len(c.DiscoveryArgs) > 0 {
		c.InitArgs0 = c.DiscoveryArgs[0]
	}
	if c.InitArgs0 == "" {
		c.InitArgs0 = "nstap"
	}
	if c.WorkDir == "" {
		wd, err := linux.Getwd()
		if err != nil {
			return err
		}
		c.WorkDir = wd
	}
	return nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	var errs []error
	if c.DiscoveryPath == "" {
		errs = append(errs, errors.New("discovery path is empty"))
	} else if !filepath.IsAbs(c.DiscoveryPath) {
		errs = append(errs, fmt.Errorf("discovery path %q is not absolute", c.DiscoveryPath))
	}
	if len(c.DiscoveryArgs) == 0 {
		errs = append(errs, errors.New("discovery argv is empty"))
	}
	if c.DiscoveryTimeout < 0 {
		errs = append(errs, fmt.Errorf("negative discovery timeout %s", c.DiscoveryTimeout))
	}
	for _, p := range []struct{ name, path string }{
		{"proc root", c.ProcRoot},
		{"work dir", c.WorkDir},
		{"init path", c.InitPath},
	} {
		if p.path != "" && !filepath.IsAbs(p.path) {
			errs = append(errs, fmt.Errorf("%s %q is not absolute", p.name, p.path))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return newError(ErrArgumentInvalid, "validate configuration", err)
	}
	return nil
}
