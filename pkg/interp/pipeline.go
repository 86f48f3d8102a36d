package interp

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/reubeno/brush-sub004/pkg/parse"
)

func (fm *frame) pipeline(pp *parse.Pipeline) Result {
	var start time.Time
	if pp.Timed {
		start = time.Now()
	}
	r := fm.runStages(pp.Stages)
	if pp.Timed {
		real := time.Since(start)
		fmt.Fprintf(fm.diagFile, "real\t%.3fs\nuser\t%.3fs\nsys\t%.3fs\n",
			real.Seconds(), fm.exec.lastChildUser.Seconds(), fm.exec.lastChildSys.Seconds())
	}
	if pp.Bang && r.Flow == flowNone {
		if r.Status == 0 {
			r.Status = 1
		} else {
			r.Status = 0
		}
	}
	return r
}

// runStages coordinates one foreground pipeline. External stages are
// spawned flat, in order, into a single process group that one wait loop
// observes; in-process stages run as goroutines on isolated contexts. The
// final stage runs in the calling context when it is not an external
// command, so its directives and variable assignments take effect here.
func (fm *frame) runStages(stages []*parse.Stage) Result {
	fm.exec.lastChildUser, fm.exec.lastChildSys = 0, 0
	if len(stages) == 1 {
		r := fm.command(stages[0].Cmd)
		fm.exec.lastPipelineStatuses = []int{r.Status}
		return r
	}

	n := len(stages)
	pipes := make([][2]*os.File, n-1)
	for i := range pipes {
		rf, wf, err := os.Pipe()
		if err != nil {
			for j := 0; j < i; j++ {
				pipes[j][0].Close()
				pipes[j][1].Close()
			}
			fm.diagText("can't create pipe: %v", err)
			return ok(StatusPipeError)
		}
		pipes[i][0], pipes[i][1] = rf, wf
	}

	jc := fm.jobControlActive()
	tok := fm.in.term.acquire(0)
	var procs []*process
	stageProcs := make([]*process, n)
	var texts []string
	pgid := 0
	lastSync := false
	var lastR Result

	for i, st := range stages {
		stFiles := fm.files.clone()
		if i > 0 {
			stFiles = stFiles.set(0, pipes[i-1][0])
		}
		if i < n-1 {
			stFiles = stFiles.set(1, pipes[i][1])
			if st.PipeStderr {
				stFiles = stFiles.set(2, pipes[i][1])
			}
		}
		// Pipe ends this stage is responsible for closing on the shell's
		// side. Whoever runs the stage to completion closes them, so an
		// in-process stage keeps its ends open exactly as long as it runs.
		var owned []*os.File
		if i > 0 {
			owned = append(owned, pipes[i-1][0])
		}
		if i < n-1 {
			owned = append(owned, pipes[i][1])
		}

		p, text, status, external := fm.spawnExternalStage(st.Cmd, stFiles, &pgid, jc, true)
		if external {
			for _, f := range owned {
				f.Close()
			}
			texts = append(texts, text)
			if p != nil {
				stageProcs[i] = p
				procs = append(procs, p)
			} else if i == n-1 {
				lastSync = true
				lastR = ok(status)
			}
			continue
		}

		text = stageText(st.Cmd)
		texts = append(texts, text)
		if i < n-1 {
			sf := fm.cloneForSubshell()
			sf.files = stFiles
			cmd := st.Cmd
			ends := owned
			p := fm.inProcessHandle(text, func() Result {
				r := sf.command(cmd)
				for _, f := range ends {
					f.Close()
				}
				return r
			})
			stageProcs[i] = p
			procs = append(procs, p)
			continue
		}

		saved := fm.files
		fm.files = stFiles
		lastR = fm.command(st.Cmd)
		fm.files = saved
		for _, f := range owned {
			f.Close()
		}
		lastSync = true
	}

	var lastProc *process
	if !lastSync && n > 0 {
		lastProc = stageProcs[n-1]
	}
	r, stopped := fm.waitForeground(fgWait{
		procs:   procs,
		last:    lastProc,
		pgid:    pgid,
		command: strings.Join(texts, " | "),
	})
	tok.release()

	statuses := make([]int, n)
	for i, p := range stageProcs {
		if p != nil {
			statuses[i] = p.status
		} else if i == n-1 && lastSync {
			statuses[i] = lastR.Status
		}
	}
	fm.exec.lastPipelineStatuses = statuses

	if stopped {
		return r
	}
	if lastSync {
		return lastR
	}
	return r
}

// spawnExternalStage starts one pipeline stage as a child process if the
// stage is a simple command resolving to an external program. external is
// false when the stage must run in-process instead; p is nil with a
// nonzero status when the stage is external but could not be launched.
// *pgid is zero for the group leader and, when job control created a group,
// updated to its pid after launch. fg hands the group the terminal as part
// of the launch; only foreground pipelines set it.
func (fm *frame) spawnExternalStage(c *parse.Command, stFiles files, pgid *int, jc, fg bool) (p *process, text string, status int, external bool) {
	data, isSimple := c.Data.(parse.Simple)
	if !isSimple {
		return nil, "", 0, false
	}
	words, err := fm.expandWords(data.Words)
	if err != nil {
		fm.diag(c, "%v", err)
		return nil, "", StatusExpansionError, true
	}
	if len(words) == 0 {
		return nil, "", 0, false
	}
	text = strings.Join(words, " ")
	if _, found := specialBuiltins[words[0]]; found {
		return nil, "", 0, false
	}
	if _, found := fm.functions[words[0]]; found {
		return nil, "", 0, false
	}
	if _, found := builtins[words[0]]; found {
		return nil, "", 0, false
	}

	var extraEnv []string
	for _, assign := range data.Assigns {
		value, err := fm.expandWord(assign.RHS)
		if err != nil {
			fm.diag(c, "%v", err)
			return nil, text, StatusExpansionError, true
		}
		extraEnv = append(extraEnv, assign.Name+"="+value)
	}

	saved := fm.files
	fm.files = stFiles
	defer func() { fm.files = saved }()
	rdStatus, cleanup := fm.applyRedirs(c.Redirs)
	defer cleanup()
	if rdStatus != 0 {
		return nil, text, rdStatus, true
	}

	path, lookStatus := lookPath(words[0], *fm.cwd, fm.pathVar())
	if lookStatus == StatusCommandNotFound {
		fm.diag(c, "%v: command not found", words[0])
		return nil, text, lookStatus, true
	} else if lookStatus != 0 {
		fm.diag(c, "%v: not executable", words[0])
		return nil, text, lookStatus, true
	}

	spec := launchSpec{
		path:       path,
		argv0:      words[0],
		args:       words[1:],
		files:      fm.files,
		extraEnv:   extraEnv,
		newGroup:   jc,
		pgid:       *pgid,
		foreground: jc && fg && *pgid == 0,
	}
	started, err := fm.startProcess(spec)
	if err != nil {
		return nil, text, fm.reportLaunchError(c, err), true
	}
	// Without job control no group was created, so pgid stays zero and
	// signaling falls back to individual pids.
	if spec.newGroup && *pgid == 0 {
		*pgid = started.pid
	}
	return started, text, 0, true
}

type fgWait struct {
	procs   []*process
	last    *process // nil when the final stage ran in the calling context
	pgid    int
	command string
}

// waitForeground suspends until every listed process has exited, staying
// responsive to stop requests. If the whole set ends up stopped it is
// registered in the job table, announced, and stopped=true is returned
// with the stopping signal's status. Events for unrelated jobs arriving
// during the wait are applied to the table as they come.
func (fm *frame) waitForeground(w fgWait) (Result, bool) {
	jt := fm.in.jobs
	for {
		jt.drain()
		exited, anyStopped, anyRunning := tallyProcs(w.procs)
		if exited == len(w.procs) {
			break
		}
		if fm.jobControlActive() && anyStopped && !anyRunning {
			j := jt.add(w.command, w.pgid, w.procs)
			fmt.Fprintln(fm.diagFile, jt.format(j, false))
			j.everReported = true
			j.reportedState = j.state
			return ok(stopStatus(w.procs)), true
		}
		select {
		case ev := <-jt.events:
			jt.apply(ev)
		case <-fm.in.tstp:
			requestStop(w.pgid, w.procs)
		case <-fm.in.intr:
			// The foreground group receives the interrupt directly from
			// the terminal; nothing to forward.
		}
	}
	for _, p := range w.procs {
		fm.exec.lastChildUser += p.userTime
		fm.exec.lastChildSys += p.sysTime
	}
	if w.last != nil {
		return ok(w.last.status), false
	}
	return ok(0), false
}

func tallyProcs(procs []*process) (exited int, anyStopped, anyRunning bool) {
	for _, p := range procs {
		switch {
		case p.exited:
			exited++
		case p.stopped:
			anyStopped = true
		default:
			anyRunning = true
		}
	}
	return exited, anyStopped, anyRunning
}

func stopStatus(procs []*process) int {
	for _, p := range procs {
		if p.stopped {
			return p.status
		}
	}
	return StatusSignalBase
}

// runBackground launches one background item. A single pipeline of plain
// external commands becomes a real background process group; anything else
// runs on an isolated shell context inside this process, tracked as a
// pid-less job.
func (fm *frame) runBackground(it *parse.Item) {
	if len(it.AndOr.Pipelines) == 1 {
		if j, started := fm.spawnBackgroundPipeline(it.AndOr.Pipelines[0]); started {
			fm.reportBackgroundJob(j)
			return
		}
	}
	nf := fm.forkBackgroundFrame()
	ao := it.AndOr
	text := itemText(it)
	p := fm.inProcessHandle(text, func() Result {
		return nf.andOr(ao)
	})
	j := fm.in.jobs.add(text, 0, []*process{p})
	fm.exec.lastBackgroundPid = 0
	fm.reportBackgroundJob(j)
}

// spawnBackgroundPipeline handles the common background shape where every
// stage is an external simple command: all stages go into one process
// group that nothing waits on inline.
func (fm *frame) spawnBackgroundPipeline(pp *parse.Pipeline) (*Job, bool) {
	if pp.Bang || pp.Timed {
		return nil, false
	}
	for _, st := range pp.Stages {
		data, isSimple := st.Cmd.Data.(parse.Simple)
		if !isSimple {
			return nil, false
		}
		words, err := fm.expandWords(data.Words)
		if err != nil || len(words) == 0 {
			return nil, false
		}
		if _, found := specialBuiltins[words[0]]; found {
			return nil, false
		}
		if _, found := fm.functions[words[0]]; found {
			return nil, false
		}
		if _, found := builtins[words[0]]; found {
			return nil, false
		}
	}

	n := len(pp.Stages)
	pipes := make([][2]*os.File, n-1)
	for i := range pipes {
		rf, wf, err := os.Pipe()
		if err != nil {
			for j := 0; j < i; j++ {
				pipes[j][0].Close()
				pipes[j][1].Close()
			}
			fm.diagText("can't create pipe: %v", err)
			return nil, false
		}
		pipes[i][0], pipes[i][1] = rf, wf
	}

	jc := fm.jobControlActive()
	procs := make([]*process, 0, n)
	var texts []string
	pgid := 0
	for i, st := range pp.Stages {
		stFiles := fm.files.clone()
		if i > 0 {
			stFiles = stFiles.set(0, pipes[i-1][0])
		}
		if i < n-1 {
			stFiles = stFiles.set(1, pipes[i][1])
			if st.PipeStderr {
				stFiles = stFiles.set(2, pipes[i][1])
			}
		}
		p, text, status, _ := fm.spawnExternalStage(st.Cmd, stFiles, &pgid, jc, false)
		if i > 0 {
			pipes[i-1][0].Close()
		}
		if i < n-1 {
			pipes[i][1].Close()
		}
		texts = append(texts, text)
		if p == nil {
			// Launch failure: track the stage as already exited so the
			// job's aggregate state stays truthful.
			p = &process{command: text, exited: true, status: status}
		}
		procs = append(procs, p)
	}

	j := fm.in.jobs.add(strings.Join(texts, " | "), pgid, procs)
	fm.exec.lastBackgroundPid = procs[len(procs)-1].pid
	return j, true
}

func (fm *frame) reportBackgroundJob(j *Job) {
	if fm.in.interactive {
		pid := ""
		if n := len(j.procs); n > 0 && j.procs[n-1].pid != 0 {
			pid = fmt.Sprintf(" %d", j.procs[n-1].pid)
		}
		fmt.Fprintf(fm.diagFile, "[%d]%s\n", j.id, pid)
	}
	j.everReported = true
	j.reportedState = j.state
}

// forkBackgroundFrame builds an isolated shell context for a background
// item that cannot run as plain child processes: its own job table and
// trap table, copied variables and functions, no terminal.
func (fm *frame) forkBackgroundFrame() *frame {
	bg := &Interp{
		arguments: cloneSlice(fm.arguments),
		variables: fm.variables.clone(),
		functions: cloneMap(fm.functions),
		files:     fm.files.clone(),
		options:   fm.options().with(monitor, false),
		cwd:       *fm.cwd,
		jobs:      newJobTable(),
		traps: trapState{
			handlers: cloneMap(fm.in.traps.handlers),
			pending:  make(chan os.Signal, 16),
		},
		notifier: fm.in.notifier,
	}
	return bg.frame()
}

// The display helpers below reconstruct command text for the job table
// from the unexpanded tree; only spawned stages use their expanded argv.

func wordText(w *parse.Word) string {
	var b strings.Builder
	for _, part := range w.Parts {
		if part.Var != "" {
			b.WriteString("$" + part.Var)
		} else {
			b.WriteString(part.Lit)
		}
	}
	return b.String()
}

func stageText(c *parse.Command) string {
	switch data := c.Data.(type) {
	case parse.Simple:
		var parts []string
		for _, assign := range data.Assigns {
			parts = append(parts, assign.Name+"="+wordText(assign.RHS))
		}
		for _, w := range data.Words {
			parts = append(parts, wordText(w))
		}
		return strings.Join(parts, " ")
	case parse.Group:
		return "{ ...; }"
	case parse.Subshell:
		return "( ... )"
	case parse.If:
		return "if ..."
	case parse.While:
		if data.Until {
			return "until ..."
		}
		return "while ..."
	case parse.For:
		return "for " + data.Var + " ..."
	case parse.FnDef:
		return data.Name + "()"
	}
	return "..."
}

func pipelineText(pp *parse.Pipeline) string {
	var texts []string
	for _, st := range pp.Stages {
		texts = append(texts, stageText(st.Cmd))
	}
	return strings.Join(texts, " | ")
}

func itemText(it *parse.Item) string {
	var b strings.Builder
	for i, pp := range it.AndOr.Pipelines {
		if i > 0 {
			b.WriteString(" " + it.AndOr.Ops[i-1] + " ")
		}
		b.WriteString(pipelineText(pp))
	}
	return b.String()
}
