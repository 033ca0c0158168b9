package libtap

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nstap/nstap/libtap/devices"
)

// Node is a device node created by Create.
type Node struct {
	Path   string
	Device devices.Number
}

// Create makes a character device node named tap-<name> in c.WorkDir for
// the macvtap interface name that lives in the network namespace of the
// process reported by c.DiscoveryPath.
//
// The steps run strictly in order: discovery, namespace handle
// acquisition, discovery child release, resolution inside the target's
// namespaces, node creation. The discovery child is kept alive until the
// handles are open so that its pid cannot be recycled in between.
func Create(ctx context.Context, c Config, name string) (*Node, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := c.setDefaults(); err != nil {
		return nil, newError(ErrArgumentInvalid, "config", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	h, err := discoverAndOpen(ctx, &c)
	if err != nil {
		return nil, err
	}

	dev, err := resolveInWorker(ctx, &c, h, name)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("%s resolved to %s", name, dev)

	warnIfCannotMknod()
	path, err := mknod(c.WorkDir, name, dev)
	if err != nil {
		return nil, err
	}
	return &Node{Path: path, Device: dev}, nil
}

// discoverAndOpen runs discovery, opens the target's namespace handles
// and then releases the discovery child.
func discoverAndOpen(ctx context.Context, c *Config) (*Handles, error) {
	if c.DiscoveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.DiscoveryTimeout)
		defer cancel()
	}

	target, err := Discover(ctx, c.DiscoveryPath, c.DiscoveryArgs)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("target pid is %d", target.Pid)

	h, openErr := OpenHandles(c.ProcRoot, target.Pid)
	if err := target.Release(); err != nil {
		if openErr == nil {
			h.Close()
		}
		return nil, err
	}
	if openErr != nil {
		return nil, openErr
	}
	return h, nil
}
