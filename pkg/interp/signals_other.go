//go:build !unix

package interp

import (
	"syscall"
)

// Platforms without the full POSIX signal set still understand the handful
// Go's runtime can deliver.
var signalByName = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"KILL": syscall.SIGKILL,
	"QUIT": syscall.SIGQUIT,
	"TERM": syscall.SIGTERM,
}

var signalAliases = map[string]bool{}
