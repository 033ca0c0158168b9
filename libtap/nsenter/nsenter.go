//go:build linux && !gccgo

// Package nsenter joins the namespaces of another process before the Go
// runtime starts. Go cannot setns(2) into a user namespace once it has
// spawned threads, so the join runs from a C constructor in the
// re-executed worker, and is a no-op in every other process.
//
// The worker is told what to do through the environment:
//
//	_NSTAP_INIT       set to "1" in the worker only
//	_NSTAP_USERNS_FD  inherited user namespace fd (optional)
//	_NSTAP_NETNS_FD   inherited network namespace fd
//	_NSTAP_LOGPIPE    fd receiving JSON log lines (optional)
package nsenter

/*
#cgo CFLAGS: -Wall -Werror
extern void nsexec();
void __attribute__((constructor)) init(void) {
	nsexec();
}
*/
import "C"
