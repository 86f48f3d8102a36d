package interp

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/reubeno/brush-sub004/pkg/parse"
)

// Interp is one shell instance. All mutable shell state (variables,
// functions, the job table, the trap table) is owned exclusively by the
// instance and mutated only from its own control flow; child processes run
// concurrently but report back through the job table's event channel.
// Embeddings wanting several shells hold several Interp values.
type Interp struct {
	arguments []string
	variables variables
	functions map[string]*parse.Command
	files     files
	options   options
	cwd       string

	interactive bool
	term        *terminal
	jobs        *jobTable
	traps       trapState
	notifier    ProcessNotifier

	execState

	// Listeners registered when job control is enabled. A nil channel
	// never fires in a select, so the wait loop can race them
	// unconditionally.
	tstp chan os.Signal
	intr chan os.Signal

	exited     bool
	exitStatus int
}

// execState is the status bookkeeping one flow of execution reads and
// writes. The instance holds the authoritative copy; concurrently running
// pipeline stages get their own, so no two flows ever share one.
type execState struct {
	// Both of these back the $? and $! parameters.
	lastPipelineStatus int
	lastBackgroundPid  int

	// Per-stage statuses of the last foreground pipeline.
	lastPipelineStatuses []int

	// Child CPU usage from the last foreground wait, feeding the time
	// reserved word.
	lastChildUser time.Duration
	lastChildSys  time.Duration
}

// New creates a shell instance. args[0] is the shell's own name; files must
// hold at least descriptors 0, 1 and 2.
func New(args []string, fs []*os.File) *Interp {
	if len(args) < 1 {
		panic("args must have at least 1 element")
	}
	if len(fs) < 3 {
		panic("files must have at least 3 elements")
	}
	cwd, _ := os.Getwd()
	return &Interp{
		arguments: args,
		variables: initVariablesFromEnv(os.Environ()),
		functions: make(map[string]*parse.Command),
		files:     files(fs).clone(),
		cwd:       cwd,
		jobs:      newJobTable(),
		traps:     newTrapState(),
	}
}

// SetNotifier attaches the optional process-lifecycle subscriber.
func (i *Interp) SetNotifier(n ProcessNotifier) { i.notifier = n }

// EnableJobControl puts the shell in its own process group, takes terminal
// ownership and registers the stop/interrupt listeners. Returns whether job
// control actually engaged; on failure the shell degrades gracefully and
// simply runs without it.
func (i *Interp) EnableJobControl() bool {
	i.interactive = true
	i.term = setupTerminal(i.files.stdOr(0, os.Stdin))
	if i.term == nil {
		return false
	}
	i.options = i.options.with(monitor, true)
	i.tstp = make(chan os.Signal, 1)
	signal.Notify(i.tstp, syscall.SIGTSTP)
	i.intr = make(chan os.Signal, 1)
	signal.Notify(i.intr, os.Interrupt)
	return true
}

// Eval parses and runs one chunk of input, returning its exit status.
func (i *Interp) Eval(code string) int {
	if i.options.has(verbose) {
		fmt.Fprint(i.files.stdOr(2, os.Stderr), code)
	}
	prog, err := parse.Parse(code)
	if err != nil {
		fmt.Fprintln(i.files.stdOr(2, os.Stderr), "syntax error:", err)
		return StatusSyntaxError
	}
	return i.EvalProgram(prog)
}

// EvalProgram runs an already-parsed tree. An exit directive reaching the
// top level marks the instance exited; the front end checks Exited after
// each chunk.
func (i *Interp) EvalProgram(p *parse.Program) int {
	fm := i.frame()
	r := fm.program(p)
	if r.Flow == flowExit {
		i.exited = true
		i.exitStatus = r.Status
	}
	i.lastPipelineStatus = r.Status
	return r.Status
}

// Exited reports whether an exit directive reached the top level, and with
// what status.
func (i *Interp) Exited() (bool, int) { return i.exited, i.exitStatus }

// Poll performs one non-blocking reconciliation sweep and returns jobs
// whose state changed since the previous poll.
func (i *Interp) Poll() []*Job {
	i.jobs.drain()
	return i.jobs.changedJobs()
}

// CheckForCompletedJobs is the between-prompt reporting hook: it polls,
// formats every changed job, and retires the finished ones.
func (i *Interp) CheckForCompletedJobs() []string {
	var lines []string
	for _, j := range i.Poll() {
		lines = append(lines, i.jobs.format(j, false))
		if j.state == Done {
			i.jobs.remove(j)
		}
	}
	return lines
}

// WaitAll suspends until every tracked job is Done, then reports and
// retires them. The suspension is on the job table's event channel; the
// calling flow stays responsive to nothing else, per wait's semantics.
func (i *Interp) WaitAll() []*Job {
	for {
		i.jobs.drain()
		allDone := true
		for _, j := range i.jobs.jobs {
			if j.state != Done {
				allDone = false
			}
		}
		if allDone {
			break
		}
		ev, okCh := <-i.jobs.events
		if !okCh {
			break
		}
		i.jobs.apply(ev)
	}
	var done []*Job
	for _, j := range i.jobs.jobs {
		done = append(done, j)
	}
	for _, j := range done {
		i.jobs.remove(j)
	}
	return done
}

func (i *Interp) frame() *frame {
	return &frame{
		in:        i,
		arguments: i.arguments,
		variables: &i.variables,
		functions: i.functions,
		files:     i.files.clone(),
		diagFile:  i.files.stdOr(2, os.Stderr),
		opts:      &i.options,
		cwd:       &i.cwd,
		exec:      &i.execState,
	}
}

// frame is one execution context. Cheap state (arguments, the open-file
// table) is copied per context; the shared tables are reached through the
// owning instance.
type frame struct {
	in        *Interp
	arguments []string
	variables *variables
	functions map[string]*parse.Command
	files     files
	// Shell diagnostic messages go to the initial stderr regardless of
	// active redirections.
	diagFile *os.File
	opts     *options

	// The main flow points both at the instance's own copies; subshell
	// clones get private ones, so a subshell's cd or $? never leaks out.
	cwd  *string
	exec *execState

	loopDepth int
	fnDepth   int
	condDepth int
}

func (fm *frame) options() options { return *fm.opts }

func (fm *frame) jobControlActive() bool {
	return fm.in.term != nil && fm.options().has(monitor)
}

// cloneForSubshell produces an isolated context: its variable, function and
// file tables are copies, so nothing it does is visible to the parent.
func (fm *frame) cloneForSubshell() *frame {
	vars := fm.variables.clone()
	opts := *fm.opts
	cwd := *fm.cwd
	exec := *fm.exec
	return &frame{
		in:        fm.in,
		arguments: cloneSlice(fm.arguments),
		variables: &vars,
		functions: cloneMap(fm.functions),
		files:     fm.files.clone(),
		diagFile:  fm.diagFile,
		opts:      &opts,
		cwd:       &cwd,
		exec:      &exec,
		loopDepth: 0,
		fnDepth:   0,
	}
}

func (fm *frame) diag(n parse.Node, format string, args ...any) {
	fmt.Fprintf(fm.diagFile, format+"\n", args...)
}

func (fm *frame) diagText(format string, args ...any) {
	fmt.Fprintf(fm.diagFile, format+"\n", args...)
}

func (fm *frame) badCommandLine(format string, args ...any) {
	fm.diagText(format, args...)
}

// The (*frame) methods below walk the resolved command tree. Every one of
// them returns a [Result]; composite executors check the directive and
// either consume it (when it targets exactly their level), rewrite it for
// an outer level, or hand it up unchanged.

func (fm *frame) program(p *parse.Program) Result {
	last := ok(0)
	for _, it := range p.Items {
		fm.servicePendingTraps()
		if fm.options().has(notify) {
			// Asynchronous reporting: announce job-state changes as soon
			// as a command boundary is reached, not just before a prompt.
			for _, line := range fm.in.CheckForCompletedJobs() {
				fmt.Fprintln(fm.diagFile, line)
			}
		}
		if it.Background {
			fm.runBackground(it)
			last = ok(0)
			continue
		}
		r := fm.andOr(it.AndOr)
		if r.diverted() {
			return r
		}
		if fm.options().has(errexit) && fm.condDepth == 0 && r.Status != 0 {
			return exitResult(r.Status)
		}
		last = r
	}
	return last
}

func (fm *frame) andOr(ao *parse.AndOr) Result {
	last := ok(0)
	for idx, pp := range ao.Pipelines {
		if idx > 0 && shouldSkipAndOr(ao.Ops[idx-1], last.Status) {
			continue
		}
		if idx < len(ao.Pipelines)-1 {
			// Statuses feeding && and || are conditions, exempt from
			// errexit.
			fm.condDepth++
		}
		r := fm.pipeline(pp)
		if idx < len(ao.Pipelines)-1 {
			fm.condDepth--
		}
		fm.exec.lastPipelineStatus = r.Status
		if r.diverted() {
			return r
		}
		last = r
	}
	return last
}

func shouldSkipAndOr(op string, lastStatus int) bool {
	return (op == "&&" && lastStatus != 0) || (op == "||" && lastStatus == 0)
}

func (fm *frame) command(c *parse.Command) Result {
	switch data := c.Data.(type) {
	case parse.Simple:
		return fm.runSimple(c, data)
	case parse.FnDef:
		fm.functions[data.Name] = data.Body
		return ok(0)
	}

	// Redirections on compound commands are scoped to the command: the
	// table is cloned and restored, so untouched descriptors are bitwise
	// identical afterwards.
	if len(c.Redirs) > 0 {
		saved := fm.files
		fm.files = fm.files.clone()
		defer func() { fm.files = saved }()
		status, cleanup := fm.applyRedirs(c.Redirs)
		defer cleanup()
		if status != 0 {
			return ok(status)
		}
	}

	switch data := c.Data.(type) {
	case parse.Group:
		return fm.program(data.Body)
	case parse.Subshell:
		// Directives never escape a subshell; only its status does.
		r := fm.cloneForSubshell().program(data.Body)
		return ok(r.Status)
	case parse.If:
		return fm.runIf(data)
	case parse.While:
		return fm.runWhileUntil(data)
	case parse.For:
		return fm.runFor(data)
	default:
		fm.diag(c, "bug: unknown command type %T", c.Data)
		return ok(StatusShellBug)
	}
}

func (fm *frame) runIf(data parse.If) Result {
	for idx, cond := range data.Conds {
		fm.condDepth++
		c := fm.program(cond)
		fm.condDepth--
		if c.diverted() {
			return c
		}
		if c.Status == 0 {
			return fm.program(data.Bodies[idx])
		}
	}
	if data.Else != nil {
		return fm.program(data.Else)
	}
	return ok(0)
}

func (fm *frame) runWhileUntil(data parse.While) Result {
	wantZero := !data.Until
	fm.loopDepth++
	defer func() { fm.loopDepth-- }()
	last := ok(0)
	for {
		fm.condDepth++
		c := fm.program(data.Cond)
		fm.condDepth--
		if out, stop, next := c.unwindLoop(); stop {
			return out
		} else if next {
			continue
		}
		if (c.Status == 0) != wantZero {
			break
		}
		r := fm.program(data.Body)
		if out, stop, next := r.unwindLoop(); stop {
			return out
		} else if next {
			continue
		}
		last = r
	}
	return ok(last.Status)
}

func (fm *frame) runFor(data parse.For) Result {
	var values []string
	if !data.WordsSet {
		values = cloneSlice(fm.arguments[1:])
	} else {
		var err error
		values, err = fm.expandWords(data.Words)
		if err != nil {
			fm.diagText("%v", err)
			return ok(StatusExpansionError)
		}
	}
	fm.loopDepth++
	defer func() { fm.loopDepth-- }()
	last := ok(0)
	for _, value := range values {
		if err := fm.setVar(data.Var, value); err != nil {
			fm.diagText("%v", err)
			return ok(StatusFailure)
		}
		r := fm.program(data.Body)
		if out, stop, next := r.unwindLoop(); stop {
			return out
		} else if next {
			continue
		}
		last = r
	}
	return ok(last.Status)
}

func (fm *frame) runSimple(c *parse.Command, data parse.Simple) Result {
	fm.fireDebugTrap()

	words, err := fm.expandWords(data.Words)
	if err != nil {
		fm.diag(c, "%v", err)
		return ok(StatusExpansionError)
	}

	if len(c.Redirs) > 0 {
		saved := fm.files
		fm.files = fm.files.clone()
		defer func() { fm.files = saved }()
		status, cleanup := fm.applyRedirs(c.Redirs)
		defer cleanup()
		if status != 0 {
			return ok(status)
		}
	}

	if len(words) == 0 {
		// Assignments only: they persist in this context.
		for _, assign := range data.Assigns {
			value, err := fm.expandWord(assign.RHS)
			if err != nil {
				fm.diag(c, "%v", err)
				return ok(StatusExpansionError)
			}
			if err := fm.setVar(assign.Name, value); err != nil {
				fm.diag(c, "%v", err)
				return ok(StatusFailure)
			}
		}
		return ok(0)
	}

	// Assignments prefixed to a command only augment its environment.
	var extraEnv []string
	for _, assign := range data.Assigns {
		value, err := fm.expandWord(assign.RHS)
		if err != nil {
			fm.diag(c, "%v", err)
			return ok(StatusExpansionError)
		}
		extraEnv = append(extraEnv, assign.Name+"="+value)
	}

	if fm.options().has(xtrace) {
		fm.diagText("+ %v", strings.Join(words, " "))
	}
	if fm.options().has(noexec) {
		return ok(0)
	}

	r := fm.dispatch(c, words, extraEnv)
	if r.Flow == flowNone {
		fm.fireErrTrap(r.Status)
	}
	return r
}

// dispatch resolves a command name the way 2.9.1 orders it: special
// builtin, then function, then builtin, then external.
func (fm *frame) dispatch(c *parse.Command, words []string, extraEnv []string) Result {
	if builtin, found := specialBuiltins[words[0]]; found {
		return builtin(fm, words[1:])
	}
	if fn, found := fm.functions[words[0]]; found {
		return fm.callFunction(fn, words)
	}
	if builtin, found := builtins[words[0]]; found {
		return ok(builtin(fm, words[1:]))
	}
	return fm.runExternal(c, words, extraEnv)
}

func (fm *frame) callFunction(fn *parse.Command, words []string) Result {
	oldArgs := fm.arguments
	fm.arguments = words
	fm.fnDepth++
	r := fm.command(fn)
	fm.fnDepth--
	fm.arguments = oldArgs
	if r.Flow == flowReturn {
		// The function boundary consumes return; break/continue targeting
		// an enclosing loop keep going, exit keeps going.
		return ok(r.Status)
	}
	return r
}

func (fm *frame) pathVar() string {
	return fm.variables.values["PATH"]
}

// runExternal executes one external command in the foreground.
func (fm *frame) runExternal(c *parse.Command, words []string, extraEnv []string) Result {
	path, status := lookPath(words[0], *fm.cwd, fm.pathVar())
	if status == StatusCommandNotFound {
		fm.diag(c, "%v: command not found", words[0])
		return ok(status)
	} else if status != 0 {
		fm.diag(c, "%v: not executable", words[0])
		return ok(status)
	}

	jc := fm.jobControlActive()
	spec := launchSpec{
		path:       path,
		argv0:      words[0],
		args:       words[1:],
		files:      fm.files,
		extraEnv:   extraEnv,
		newGroup:   jc,
		foreground: jc,
	}
	tok := fm.in.term.acquire(0)
	p, err := fm.startProcess(spec)
	if err != nil {
		tok.release()
		return ok(fm.reportLaunchError(c, err))
	}
	// A process group exists only when the launch created one; with job
	// control off the child shares the shell's group and signaling falls
	// back to individual pids.
	pgid := 0
	if jc {
		pgid = p.pid
	}
	r, _ := fm.waitForeground(fgWait{
		procs:   []*process{p},
		last:    p,
		pgid:    pgid,
		command: strings.Join(words, " "),
	})
	tok.release()
	return r
}

func (fm *frame) reportLaunchError(n parse.Node, err error) int {
	if nf, isNF := err.(CommandNotFoundError); isNF {
		fm.diag(n, "%v", nf)
		return StatusCommandNotFound
	}
	fm.diag(n, "%v", err)
	return StatusCommandNotExecutable
}
