package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/nstap/nstap/libtap"
)

// version is set with go build -ldflags "-X main.version=...".
var version = "unknown"

// gitCommit will be the hash that the binary was built from,
// set the same way as version.
var gitCommit = ""

// discoveryExec is the executable asked for the target pid. Packagers
// set it with -X main.discoveryExec=.
var discoveryExec = "/usr/libexec/nstap/target-pid"

const usage = `create a device node for a macvtap interface in another namespace

nstap asks the target discovery executable which process owns the
interface, joins that process's user and network namespaces in a short
lived worker, looks up the interface's macvtap character device there and
creates it as "tap-<interface-name>" in the current directory.

Everything from the interface name on is passed to the discovery
executable, which also gets the program name as argv[0]:

    # nstap macvtap0 my-vm`

func main() {
	app := cli.NewApp()
	app.Name = "nstap"
	app.Usage = usage
	app.ArgsUsage = "<interface-name> [args...]"
	// No help command: "help" is a valid interface name.
	app.HideHelp = true

	v := []string{version}
	if gitCommit != "" {
		v = append(v, "commit: "+gitCommit)
	}
	v = append(v, "discovery: "+discoveryExec)
	v = append(v, "go: "+runtime.Version())
	app.Version = strings.Join(v, "\n")

	app.Flags = []cli.Flag{
		cli.HelpFlag,
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "set the log file to write nstap logs to (default is '/dev/stderr')",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "set the log format ('text' (default), or 'json')",
		},
		cli.DurationFlag{
			Name:  "discovery-timeout",
			Value: 30 * time.Second,
			Usage: "how long the discovery executable may take to report the pid (0 to wait forever)",
		},
	}
	app.Before = configLogrus
	app.Action = createAction

	// If the command returns an error, cli takes upon itself to print
	// the error on cli.ErrWriter and exit.
	// Use our own writer here to ensure the log gets sent to the right location.
	cli.ErrWriter = &FatalWriter{cli.ErrWriter}
	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func createAction(context *cli.Context) error {
	if context.GlobalBool("help") {
		return cli.ShowAppHelp(context)
	}
	if !context.Args().Present() {
		return fmt.Errorf("usage: %s %s: %w", context.App.Name, context.App.ArgsUsage, libtap.ErrArgumentInvalid)
	}
	name := context.Args().First()
	config := libtap.Config{
		DiscoveryPath:    discoveryExec,
		DiscoveryArgs:    discoveryArgs(os.Args[0], context.Args()),
		DiscoveryTimeout: context.GlobalDuration("discovery-timeout"),
		InitArgs0:        os.Args[0],
	}
	ctx, stop := signalContext()
	defer stop()
	node, err := libtap.Create(ctx, config, name)
	if err != nil {
		return err
	}
	logrus.Debugf("created %s (%s)", node.Path, node.Device)
	return nil
}

// discoveryArgs is the discovery executable's argument vector: our own
// argv[0] followed by the interface name and whatever came after it.
func discoveryArgs(argv0 string, args []string) []string {
	return append([]string{argv0}, args...)
}

type FatalWriter struct {
	cliErrWriter io.Writer
}

func (f *FatalWriter) Write(p []byte) (n int, err error) {
	logrus.Error(string(p))
	if !logrusToStderr() {
		return f.cliErrWriter.Write(p)
	}
	return len(p), nil
}

// isUsageError reports whether err is a command line mistake rather than
// a failure of the pipeline.
func isUsageError(err error) bool {
	var e *libtap.Error
	return errors.Is(err, libtap.ErrArgumentInvalid) && !errors.As(err, &e)
}
