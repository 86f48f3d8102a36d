//go:build !unix

package interp

import (
	"errors"
	"os"
	"syscall"
)

// Reduced stub: no process groups, no terminal ownership transfers.

type terminal struct{}

func setupTerminal(*os.File) *terminal { return nil }

type termToken struct{}

func (t *terminal) acquire(int) *termToken { return nil }

func (tok *termToken) release() {}

func (i *Interp) terminalFd() int { return -1 }

func requestStop(int, []*process) {}

func requestContinue(int, []*process) error {
	return errors.New("job control not supported")
}

func suspendSelf() error {
	return errors.New("suspend not supported")
}

func (i *Interp) signalJob(j *Job, sig syscall.Signal) error {
	var firstErr error
	for _, p := range j.procs {
		if p.pid == 0 || p.exited {
			continue
		}
		proc, err := os.FindProcess(p.pid)
		if err != nil {
			continue
		}
		if err := proc.Signal(sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
