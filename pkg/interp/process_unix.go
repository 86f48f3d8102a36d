//go:build unix

package interp

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// watchProcess turns one child's wait-status changes into events on the job
// table's channel. WUNTRACED and WCONTINUED make stop and resume visible,
// not just exit; the goroutine ends once the child is reaped.
func watchProcess(proc *os.Process, p *process, events chan<- procEvent, notifier ProcessNotifier) {
	for {
		var ws unix.WaitStatus
		var ru unix.Rusage
		_, err := unix.Wait4(proc.Pid, &ws, unix.WUNTRACED|unix.WCONTINUED, &ru)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			// The child is gone in a way we can't observe (reaped elsewhere,
			// ECHILD). Report an exit so the job table stays consistent.
			events <- procEvent{p: p, kind: procExited, status: StatusWaitError}
			return
		}
		switch {
		case ws.Exited():
			ev := procEvent{
				p:        p,
				kind:     procExited,
				status:   ws.ExitStatus(),
				userTime: rusageDuration(ru.Utime),
				sysTime:  rusageDuration(ru.Stime),
			}
			notifyExit(notifier, p, ev.status)
			events <- ev
			return
		case ws.Signaled():
			ev := procEvent{
				p:        p,
				kind:     procExited,
				status:   StatusSignalBase + int(ws.Signal()),
				userTime: rusageDuration(ru.Utime),
				sysTime:  rusageDuration(ru.Stime),
			}
			notifyExit(notifier, p, ev.status)
			events <- ev
			return
		case ws.Stopped():
			events <- procEvent{p: p, kind: procStopped, status: StatusSignalBase + int(ws.StopSignal())}
		case ws.Continued():
			events <- procEvent{p: p, kind: procContinued}
		}
	}
}

func rusageDuration(tv unix.Timeval) time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}
