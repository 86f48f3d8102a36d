//go:build !unix

package interp

import "syscall"

// Process groups are not a concept here; jobs degrade to plain children.
func sysProcAttr(launchSpec, int) *syscall.SysProcAttr {
	return nil
}
