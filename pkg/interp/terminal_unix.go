//go:build unix

package interp

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// terminal wraps the controlling terminal for foreground-group transfers.
type terminal struct {
	fd        int
	shellPgid int
}

// setupTerminal prepares job control against f (normally stdin): the shell
// moves into its own process group, takes terminal ownership, and starts
// ignoring the background-IO stop signals so it is never itself stopped
// writing to a terminal a job owns. Any failure returns nil and the caller
// degrades to running without job control rather than aborting.
func setupTerminal(f *os.File) *terminal {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	signal.Ignore(syscall.SIGTTOU, syscall.SIGTTIN)
	pid := unix.Getpid()
	if unix.Getpgrp() != pid {
		if err := unix.Setpgid(0, 0); err != nil {
			return nil
		}
	}
	t := &terminal{fd: fd, shellPgid: pid}
	if err := t.setForeground(pid); err != nil {
		return nil
	}
	return t
}

func (t *terminal) foregroundGroup() (int, error) {
	return unix.IoctlGetInt(t.fd, unix.TIOCGPGRP)
}

func (t *terminal) setForeground(pgid int) error {
	return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
}

// termToken records the prior foreground group and terminal state so a
// foreground transfer can be unwound. Release is idempotent and safe after
// a partial acquisition.
type termToken struct {
	t        *terminal
	prev     int
	saved    *term.State
	released bool
}

// acquire transfers foreground ownership to pgid. With pgid zero nothing is
// transferred (the launcher's Foreground attribute already did it in the
// child); the token still captures what release must restore.
func (t *terminal) acquire(pgid int) *termToken {
	if t == nil {
		return nil
	}
	tok := &termToken{t: t, prev: -1}
	if prev, err := t.foregroundGroup(); err == nil {
		tok.prev = prev
	}
	if st, err := term.GetState(t.fd); err == nil {
		tok.saved = st
	}
	if pgid != 0 {
		// Failure degrades job control for this transfer; the job still
		// runs, it just shares the terminal with the shell.
		_ = t.setForeground(pgid)
	}
	return tok
}

// release restores the recorded foreground group and terminal state.
// Restoration failure is swallowed, never fatal.
func (tok *termToken) release() {
	if tok == nil || tok.released {
		return
	}
	tok.released = true
	if tok.prev >= 0 {
		_ = tok.t.setForeground(tok.prev)
	} else {
		_ = tok.t.setForeground(tok.t.shellPgid)
	}
	if tok.saved != nil {
		_ = term.Restore(tok.fd(), tok.saved)
	}
}

func (tok *termToken) fd() int { return tok.t.fd }

func (i *Interp) terminalFd() int {
	if i.term == nil {
		return -1
	}
	return i.term.fd
}

// signalJob delivers sig to a whole process group when pgid is known, or
// to each constituent individually otherwise.
func (i *Interp) signalJob(j *Job, sig syscall.Signal) error {
	return signalProcs(j.pgid, j.procs, sig)
}

func signalProcs(pgid int, procs []*process, sig syscall.Signal) error {
	if pgid != 0 {
		return unix.Kill(-pgid, sig)
	}
	var firstErr error
	for _, p := range procs {
		if p.pid == 0 || p.exited {
			continue
		}
		if err := unix.Kill(p.pid, sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// requestStop forwards a terminal stop request to a foreground pipeline.
func requestStop(pgid int, procs []*process) {
	_ = signalProcs(pgid, procs, syscall.SIGTSTP)
}

func requestContinue(pgid int, procs []*process) error {
	return signalProcs(pgid, procs, syscall.SIGCONT)
}

// suspendSelf stops the shell itself, as the suspend builtin requires.
// SIGTSTP would be discarded by the job-control setup, so the unblockable
// stop signal is used.
func suspendSelf() error {
	return unix.Kill(unix.Getpid(), unix.SIGSTOP)
}
