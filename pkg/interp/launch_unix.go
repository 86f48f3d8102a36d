//go:build unix

package interp

import "syscall"

// sysProcAttr builds the process-group placement attributes for a launch.
// With foreground set the child's group is also made the terminal's
// foreground group between fork and exec, so the child never runs before it
// owns the terminal.
func sysProcAttr(spec launchSpec, ctty int) *syscall.SysProcAttr {
	if !spec.newGroup {
		return nil
	}
	attr := &syscall.SysProcAttr{Setpgid: true, Pgid: spec.pgid}
	if spec.foreground && ctty >= 0 {
		attr.Foreground = true
		attr.Ctty = ctty
	}
	return attr
}
