package interp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// JobState is the aggregate state of a tracked pipeline.
type JobState uint8

const (
	// Running: at least one constituent is running.
	Running JobState = iota
	// Stopped: at least one constituent is OS-stopped and none is running.
	Stopped
	// Done: every constituent has exited and been reaped. Terminal.
	Done
)

func (s JobState) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	}
	return "Unknown"
}

// process is one constituent of a job: an optional pid plus an asynchronous
// completion source (the watcher goroutine feeding the job table's event
// channel). In-process pipeline stages have pid 0.
type process struct {
	pid     int
	command string

	exited  bool
	stopped bool
	status  int

	// Accumulated from wait(2) rusage on platforms that report it; feeds
	// the time modifier.
	userTime time.Duration
	sysTime  time.Duration
}

type procEventKind uint8

const (
	procExited procEventKind = iota
	procStopped
	procContinued
)

type procEvent struct {
	p      *process
	kind   procEventKind
	status int

	userTime time.Duration
	sysTime  time.Duration
}

// apply records the event on the process itself.
func (ev procEvent) apply() {
	p := ev.p
	if p.exited {
		// Nothing is reported for a reaped process; guard anyway.
		return
	}
	switch ev.kind {
	case procExited:
		p.exited = true
		p.stopped = false
		p.status = ev.status
		p.userTime = ev.userTime
		p.sysTime = ev.sysTime
	case procStopped:
		p.stopped = true
		p.status = ev.status
	case procContinued:
		p.stopped = false
	}
}

// Job is one tracked pipeline.
type Job struct {
	id      int
	command string
	pgid    int
	procs   []*process
	state   JobState

	inForeground bool

	// State last reported through Poll, so Poll can return exactly the
	// jobs that changed between sweeps.
	reportedState JobState
	everReported  bool
}

func (j *Job) ID() int          { return j.id }
func (j *Job) Command() string  { return j.command }
func (j *Job) State() JobState  { return j.state }
func (j *Job) Pgid() int        { return j.pgid }

// lastStatus is the exit status of the job's last constituent, which is the
// authoritative status for the pipeline.
func (j *Job) lastStatus() int {
	if len(j.procs) == 0 {
		return 0
	}
	return j.procs[len(j.procs)-1].status
}

// recomputeState re-derives the aggregate state from the constituents:
// Done iff all exited, Stopped iff at least one stopped and none running,
// Running otherwise. Done is terminal.
func (j *Job) recomputeState() {
	if j.state == Done {
		return
	}
	allExited := true
	anyStopped := false
	anyRunning := false
	for _, p := range j.procs {
		switch {
		case p.exited:
		case p.stopped:
			allExited = false
			anyStopped = true
		default:
			allExited = false
			anyRunning = true
		}
	}
	switch {
	case allExited:
		j.state = Done
	case anyStopped && !anyRunning:
		j.state = Stopped
	default:
		j.state = Running
	}
}

// jobTable owns every job of one shell instance. It is mutated only from
// the shell's own control flow; watcher goroutines communicate exclusively
// through the events channel.
type jobTable struct {
	jobs   map[int]*Job
	owners map[*process]*Job

	// Per-process reap events. Watcher goroutines block sending here; the
	// shell drains it at its suspension points.
	events chan procEvent

	current  int // id of %+, 0 if none
	previous int // id of %-, 0 if none
}

func newJobTable() *jobTable {
	return &jobTable{
		jobs:   make(map[int]*Job),
		owners: make(map[*process]*Job),
		events: make(chan procEvent, 64),
	}
}

// add registers a new job under the lowest unused id (ids are reused after
// removal) and makes it the current job.
func (jt *jobTable) add(command string, pgid int, procs []*process) *Job {
	id := 1
	for jt.jobs[id] != nil {
		id++
	}
	j := &Job{id: id, command: command, pgid: pgid, procs: procs, state: Running}
	j.recomputeState()
	jt.jobs[id] = j
	for _, p := range procs {
		jt.owners[p] = j
	}
	if jt.current != id {
		jt.previous = jt.current
		jt.current = id
	}
	return j
}

func (jt *jobTable) remove(j *Job) {
	delete(jt.jobs, j.id)
	for _, p := range j.procs {
		delete(jt.owners, p)
	}
	if jt.current == j.id {
		jt.current = jt.previous
		jt.previous = 0
	}
	if jt.previous == j.id {
		jt.previous = 0
	}
	if jt.current == 0 {
		// Promote the most recently created remaining job, if any.
		for id := range jt.jobs {
			if id > jt.current {
				jt.current = id
			}
		}
	}
}

// apply records one event and returns the owning job, if the event belongs
// to a tracked one.
func (jt *jobTable) apply(ev procEvent) *Job {
	ev.apply()
	j := jt.owners[ev.p]
	if j != nil {
		j.recomputeState()
	}
	return j
}

// drain performs one non-blocking reconciliation sweep: every event
// currently queued is applied before returning, so back-to-back state
// changes are observed together.
func (jt *jobTable) drain() {
	for {
		select {
		case ev := <-jt.events:
			jt.apply(ev)
		default:
			return
		}
	}
}

// changedJobs returns jobs whose state differs from the one last reported,
// marking them reported, sorted by id.
func (jt *jobTable) changedJobs() []*Job {
	var changed []*Job
	for _, j := range jt.jobs {
		if !j.everReported || j.state != j.reportedState {
			j.everReported = true
			j.reportedState = j.state
			changed = append(changed, j)
		}
	}
	sort.Slice(changed, func(a, b int) bool { return changed[a].id < changed[b].id })
	return changed
}

type noSuchJobError struct{ spec string }

func (err noSuchJobError) Error() string { return fmt.Sprintf("%v: no such job", err.spec) }

// resolve parses a %-prefixed job spec: %% and %+ name the current job, %-
// the previous one, %N job number N, and %name the job whose command starts
// with name.
func (jt *jobTable) resolve(spec string) (*Job, error) {
	body, hadPercent := strings.CutPrefix(spec, "%")
	if !hadPercent {
		return nil, noSuchJobError{spec}
	}
	switch body {
	case "", "%", "+":
		if j := jt.jobs[jt.current]; j != nil {
			return j, nil
		}
		return nil, noSuchJobError{spec}
	case "-":
		if j := jt.jobs[jt.previous]; j != nil {
			return j, nil
		}
		return nil, noSuchJobError{spec}
	}
	if n, err := strconv.Atoi(body); err == nil {
		if j := jt.jobs[n]; j != nil {
			return j, nil
		}
		return nil, noSuchJobError{spec}
	}
	for _, j := range jt.jobs {
		if strings.HasPrefix(j.command, body) {
			return j, nil
		}
	}
	return nil, noSuchJobError{spec}
}

// format renders one job line in the conventional jobs(1) shape.
func (jt *jobTable) format(j *Job, long bool) string {
	marker := " "
	if j.id == jt.current {
		marker = "+"
	} else if j.id == jt.previous {
		marker = "-"
	}
	state := j.state.String()
	if j.state == Done && j.lastStatus() != 0 {
		state = fmt.Sprintf("Exit %v", j.lastStatus())
	}
	if long {
		return fmt.Sprintf("[%d]%s %6d %-8s %s", j.id, marker, j.pgid, state, j.command)
	}
	return fmt.Sprintf("[%d]%s  %-8s %s", j.id, marker, state, j.command)
}
