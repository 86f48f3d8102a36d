package interp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// launchSpec is everything needed to spawn one OS process.
type launchSpec struct {
	path  string
	argv0 string   // display/argv[0] override; path if empty
	args  []string // arguments after argv[0]

	files    files // captured open-file table snapshot
	extraEnv []string
	emptyEnv bool // start from an empty environment instead of exported vars

	// Job-control placement. newGroup puts the child in its own process
	// group (or joins pgid when nonzero); foreground additionally hands it
	// the terminal before it runs, so shell and child never race for
	// ownership.
	newGroup   bool
	pgid       int
	foreground bool
}

// CommandNotFoundError marks the launch failure callers map to exit status
// 127; every other spawn failure is an ordinary error, fatal to the
// attempted command only.
type CommandNotFoundError struct{ Name string }

func (e CommandNotFoundError) Error() string { return fmt.Sprintf("%v: command not found", e.Name) }

type spawnError struct {
	path string
	err  error
}

func (e spawnError) Error() string { return fmt.Sprintf("can't start %v: %v", e.path, e.err) }
func (e spawnError) Unwrap() error { return e.err }

// startProcess spawns one process and hands it to a watcher goroutine that
// feeds the job table's event channel. The child's working directory is the
// shell's current one at launch; its environment holds exactly the exported
// variables (plus per-launch extras) unless emptyEnv is set. Launch errors
// are never retried.
func (fm *frame) startProcess(spec launchSpec) (*process, error) {
	argv0 := spec.argv0
	if argv0 == "" {
		argv0 = spec.path
	}
	var env []string
	if !spec.emptyEnv {
		env = fm.variables.serializeEnvEntries()
	}
	env = append(env, spec.extraEnv...)

	attr := &os.ProcAttr{
		Dir:   *fm.cwd,
		Env:   env,
		Files: spec.files,
		Sys:   sysProcAttr(spec, fm.in.terminalFd()),
	}
	proc, err := os.StartProcess(spec.path, append([]string{argv0}, spec.args...), attr)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, CommandNotFoundError{spec.path}
		}
		return nil, spawnError{spec.path, err}
	}

	p := &process{pid: proc.Pid, command: argv0}
	fm.notifySpawn(p, spec)
	go watchProcess(proc, p, fm.in.jobs.events, fm.in.notifier)
	return p, nil
}

// inProcessHandle wraps an in-process pipeline stage (builtin or function
// body) in a process handle: no pid, completion delivered over the same
// event channel as real children.
func (fm *frame) inProcessHandle(command string, run func() Result) *process {
	p := &process{command: command}
	events := fm.in.jobs.events
	go func() {
		r := run()
		events <- procEvent{p: p, kind: procExited, status: r.Status}
	}()
	return p
}
