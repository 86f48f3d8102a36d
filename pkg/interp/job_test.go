package interp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testJob(jt *jobTable, command string, nprocs int) *Job {
	procs := make([]*process, nprocs)
	for i := range procs {
		procs[i] = &process{pid: 1000 + i, command: command}
	}
	return jt.add(command, procs[0].pid, procs)
}

func TestJobTableIDReuse(t *testing.T) {
	jt := newJobTable()
	j1 := testJob(jt, "sleep 1", 1)
	j2 := testJob(jt, "sleep 2", 1)
	j3 := testJob(jt, "sleep 3", 1)
	if j1.id != 1 || j2.id != 2 || j3.id != 3 {
		t.Fatalf("got ids %v %v %v, want 1 2 3", j1.id, j2.id, j3.id)
	}
	jt.remove(j2)
	j4 := testJob(jt, "sleep 4", 1)
	if j4.id != 2 {
		t.Errorf("after removing job 2, new job got id %v, want the lowest unused id 2", j4.id)
	}
}

func TestJobTableCurrentPrevious(t *testing.T) {
	jt := newJobTable()
	j1 := testJob(jt, "first", 1)
	j2 := testJob(jt, "second", 1)
	if jt.current != j2.id || jt.previous != j1.id {
		t.Fatalf("current %v previous %v, want %v and %v", jt.current, jt.previous, j2.id, j1.id)
	}
	jt.remove(j2)
	if jt.current != j1.id {
		t.Errorf("after removing the current job, current = %v, want %v", jt.current, j1.id)
	}
}

func TestJobTableResolve(t *testing.T) {
	jt := newJobTable()
	j1 := testJob(jt, "sleep 100", 1)
	j2 := testJob(jt, "cat file", 1)

	tests := []struct {
		spec string
		want *Job
	}{
		{"%%", j2},
		{"%+", j2},
		{"%-", j1},
		{"%1", j1},
		{"%2", j2},
		{"%sleep", j1},
		{"%cat", j2},
	}
	for _, test := range tests {
		got, err := jt.resolve(test.spec)
		if err != nil {
			t.Errorf("resolve(%q) failed: %v", test.spec, err)
			continue
		}
		if got != test.want {
			t.Errorf("resolve(%q) = job %v, want job %v", test.spec, got.id, test.want.id)
		}
	}

	for _, bad := range []string{"%99", "%nothing", "17", ""} {
		if _, err := jt.resolve(bad); err == nil {
			t.Errorf("resolve(%q) succeeded, want error", bad)
		}
	}
}

func TestJobStateTransitions(t *testing.T) {
	jt := newJobTable()
	j := testJob(jt, "a | b", 2)
	if j.state != Running {
		t.Fatalf("new job state = %v, want Running", j.state)
	}

	jt.apply(procEvent{p: j.procs[0], kind: procStopped, status: StatusSignalBase + 20})
	if j.state != Running {
		t.Errorf("one of two stopped: state = %v, want Running", j.state)
	}
	jt.apply(procEvent{p: j.procs[1], kind: procStopped, status: StatusSignalBase + 20})
	if j.state != Stopped {
		t.Errorf("all stopped: state = %v, want Stopped", j.state)
	}
	jt.apply(procEvent{p: j.procs[0], kind: procContinued})
	if j.state != Running {
		t.Errorf("one resumed: state = %v, want Running", j.state)
	}

	jt.apply(procEvent{p: j.procs[0], kind: procExited, status: 0})
	jt.apply(procEvent{p: j.procs[1], kind: procExited, status: 3})
	if j.state != Done {
		t.Fatalf("all exited: state = %v, want Done", j.state)
	}
	if j.lastStatus() != 3 {
		t.Errorf("lastStatus = %v, want the final constituent's 3", j.lastStatus())
	}

	// Done is terminal.
	jt.apply(procEvent{p: j.procs[0], kind: procStopped, status: StatusSignalBase + 20})
	if j.state != Done {
		t.Errorf("event after Done changed state to %v", j.state)
	}
}

func TestChangedJobsReportsOnce(t *testing.T) {
	jt := newJobTable()
	j := testJob(jt, "sleep 5", 1)

	changed := jt.changedJobs()
	if len(changed) != 1 || changed[0] != j {
		t.Fatalf("first sweep reported %v jobs, want the new job once", len(changed))
	}
	if got := jt.changedJobs(); len(got) != 0 {
		t.Errorf("second sweep reported %v jobs, want none", len(got))
	}

	jt.apply(procEvent{p: j.procs[0], kind: procExited, status: 0})
	changed = jt.changedJobs()
	if len(changed) != 1 {
		t.Fatalf("after exit, sweep reported %v jobs, want 1", len(changed))
	}
	if changed[0].state != Done {
		t.Errorf("reported state = %v, want Done", changed[0].state)
	}
}

func TestJobFormat(t *testing.T) {
	jt := newJobTable()
	j1 := testJob(jt, "sleep 100", 1)
	j2 := testJob(jt, "cat file", 1)
	jt.apply(procEvent{p: j1.procs[0], kind: procExited, status: 1})

	tests := []struct {
		j    *Job
		long bool
		want string
	}{
		{j2, false, "[2]+  Running  cat file"},
		{j1, false, "[1]-  Exit 1   sleep 100"},
		{j2, true, "[2]+   1000 Running  cat file"},
	}
	for _, test := range tests {
		if diff := cmp.Diff(test.want, jt.format(test.j, test.long)); diff != "" {
			t.Errorf("format (-want +got):\n%v", diff)
		}
	}
}
