//go:build unix

package interp

import (
	"os"
	"testing"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

func TestSetupTerminalOnNonTTY(t *testing.T) {
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer devNull.Close()
	if got := setupTerminal(devNull); got != nil {
		t.Errorf("setupTerminal(%v) = %v, want nil so job control degrades", os.DevNull, got)
	}
}

func TestTerminalTokenNilSafety(t *testing.T) {
	var tm *terminal
	tok := tm.acquire(123)
	if tok != nil {
		t.Errorf("acquire on a nil terminal = %v, want nil", tok)
	}
	// Must be a no-op, not a panic.
	tok.release()
}

func TestTerminalOnPty(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	fd := int(slave.Fd())
	if !term.IsTerminal(fd) {
		t.Fatalf("pty replica not recognized as a terminal")
	}

	tm := &terminal{fd: fd, shellPgid: os.Getpid()}
	if _, err := tm.foregroundGroup(); err != nil {
		t.Skipf("TIOCGPGRP not usable on this pty: %v", err)
	}

	tok := tm.acquire(0)
	if tok == nil {
		t.Fatal("acquire on a real terminal returned nil")
	}
	// release is idempotent and swallows restoration failures.
	tok.release()
	tok.release()
}

// A stop notification for a foreground process must end the wait promptly,
// with the job registered as Stopped even though it never exited.
func TestForegroundStopRegistersStoppedJob(t *testing.T) {
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer devNull.Close()
	in := New([]string{"brush"}, []*os.File{devNull, devNull, devNull})
	in.term = &terminal{fd: -1, shellPgid: os.Getpid()}
	in.options = in.options.with(monitor, true)
	fm := in.frame()

	path, status := lookPath("sleep", "/", "/bin:/usr/bin")
	if status != 0 {
		t.Skip("no sleep binary on the search path")
	}
	p, err := fm.startProcess(launchSpec{
		path:     path,
		argv0:    "sleep",
		args:     []string{"60"},
		files:    in.files,
		newGroup: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = unix.Kill(-p.pid, unix.SIGKILL)
		in.WaitAll()
	}()

	if err := unix.Kill(p.pid, unix.SIGSTOP); err != nil {
		t.Fatal(err)
	}
	r, stopped := fm.waitForeground(fgWait{
		procs:   []*process{p},
		last:    p,
		pgid:    p.pid,
		command: "sleep 60",
	})
	if !stopped {
		t.Fatalf("waitForeground returned stopped = false, status %v", r.Status)
	}
	if want := StatusSignalBase + int(unix.SIGSTOP); r.Status != want {
		t.Errorf("status = %v, want %v", r.Status, want)
	}
	if p.exited {
		t.Errorf("process recorded as exited; it only stopped")
	}

	var j *Job
	for _, cand := range in.jobs.jobs {
		j = cand
	}
	if j == nil {
		t.Fatal("stopped foreground pipeline was not registered as a job")
	}
	if j.state != Stopped {
		t.Errorf("job state = %v, want %v", j.state, Stopped)
	}
}

func TestEnableJobControlWithoutTTY(t *testing.T) {
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer devNull.Close()
	in := New([]string{"brush"}, []*os.File{devNull, devNull, devNull})
	if in.EnableJobControl() {
		t.Errorf("EnableJobControl succeeded without a terminal")
	}
	if in.options.has(monitor) {
		t.Errorf("monitor option set even though job control degraded")
	}
	// The engine still runs fine without it.
	if status := in.Eval("echo hi >/dev/null"); status != 0 {
		t.Errorf("status = %v, want 0", status)
	}
}
