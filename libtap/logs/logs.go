// Package logs carries the namespace worker's logrus output back to the
// parent over a pipe, one JSON object per line.
package logs

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/sirupsen/logrus"
)

// workerPrefix marks forwarded messages in the parent's log.
const workerPrefix = "worker: "

// entry is the part of a worker log line that survives forwarding. Both
// logrus.JSONFormatter and nsenter's bail() produce it.
type entry struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

// ForwardLogs replays the worker's log lines from logPipe on the standard
// logger until EOF, then closes logPipe. The returned channel yields the
// read error, nil on a clean EOF, and is closed afterwards.
func ForwardLogs(logPipe io.ReadCloser) chan error {
	done := make(chan error, 1)
	logger := forwardingLogger()

	go func() {
		defer close(done)
		err := replay(logPipe, logger)
		if cerr := logPipe.Close(); cerr != nil {
			logrus.Warnf("closing worker log pipe: %v", cerr)
		}
		done <- err
	}()
	return done
}

// forwardingLogger is the standard logger, minus caller reporting: the
// caller would always be this package, not the worker code that logged.
func forwardingLogger() *logrus.Logger {
	std := logrus.StandardLogger()
	if !std.ReportCaller {
		return std
	}
	noCaller := *std
	noCaller.ReportCaller = false
	return &noCaller
}

func replay(r io.Reader, logger *logrus.Logger) error {
	s := bufio.NewScanner(r)
	for s.Scan() {
		processEntry(s.Bytes(), logger)
	}
	return s.Err()
}

// processEntry logs one line. Lines that are not worker entries are
// reported and skipped; they never stop forwarding.
func processEntry(line []byte, logger *logrus.Logger) {
	if len(line) == 0 {
		return
	}
	var e entry
	if err := json.Unmarshal(line, &e); err != nil {
		logrus.Errorf("undecodable worker log line %q: %v", line, err)
		return
	}
	lvl, err := logrus.ParseLevel(e.Level)
	if err != nil {
		logrus.Errorf("worker log line %q: %v", line, err)
		return
	}
	logger.Log(lvl, workerPrefix+e.Msg)
}
