//go:build !unix

package interp

import "os"

// Reduced stub for platforms without wait-status reporting: only exits are
// observable, so jobs never enter the Stopped state.
func watchProcess(proc *os.Process, p *process, events chan<- procEvent, notifier ProcessNotifier) {
	state, err := proc.Wait()
	status := StatusWaitError
	if err == nil {
		status = state.ExitCode()
		if status < 0 {
			status = StatusWaitOther
		}
	}
	notifyExit(notifier, p, status)
	events <- procEvent{p: p, kind: procExited, status: status}
}
