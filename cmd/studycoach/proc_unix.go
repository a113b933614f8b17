//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// detachDaemon puts the daemon in its own process group so a Ctrl-C in the
// launching terminal does not reach it
func detachDaemon(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
