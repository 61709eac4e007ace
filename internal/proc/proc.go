//go:build !windows

// Package proc spawns service processes and reads them back from the OS
// process table. A PID alone is never trusted across invocations: lookups are
// corroborated with the recorded process start time to defend against PID
// reuse after exit.
package proc

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Command builds an *exec.Cmd by splitting command on whitespace.
// There is no quoting or escaping support.
func Command(command string) (*exec.Cmd, error) {
	parts := strings.Fields(strings.TrimSpace(command))
	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}
	// #nosec G204 -- commands come from the user's own configuration
	return exec.Command(parts[0], parts[1:]...), nil
}

// Spawn starts the process for a service definition and returns the live
// handle. The child runs in its own process group with stdio discarded; it
// inherits environ as its full environment. Spawn returns as soon as the
// process is created, without waiting for the child's own initialization.
func Spawn(command, workDir string, environ []string) (*exec.Cmd, error) {
	cmd, err := Command(command)
	if err != nil {
		return nil, err
	}
	if workDir != "" {
		cmd.Dir = workDir
	}
	if len(environ) > 0 {
		cmd.Env = environ
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err == nil {
		cmd.Stdin = null
		cmd.Stdout = null
		cmd.Stderr = null
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Terminate sends SIGTERM to the process group of pid, falling back to the
// process itself when it leads no group of its own.
func Terminate(pid int) error {
	if pid <= 0 {
		return syscall.ESRCH
	}
	if err := syscall.Kill(-pid, syscall.SIGTERM); err == nil {
		return nil
	}
	return syscall.Kill(pid, syscall.SIGTERM)
}

// Kill sends SIGKILL the same way Terminate sends SIGTERM.
func Kill(pid int) error {
	if pid <= 0 {
		return syscall.ESRCH
	}
	if err := syscall.Kill(-pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return syscall.Kill(pid, syscall.SIGKILL)
}
