package main

import (
	"runtime"

	"github.com/nstap/nstap/libtap"
	_ "github.com/nstap/nstap/libtap/nsenter"
)

func init() {
	if libtap.IsInit() {
		// This is the golang entry point for nstap init, executed
		// before main() but after libtap/nsenter's nsexec().
		runtime.GOMAXPROCS(1)
		runtime.LockOSThread()
		libtap.Init()
	}
}
