//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// The global hotkey library needs the OS main thread on macOS and
	// Windows.
	mainthread.Init(run)
}
