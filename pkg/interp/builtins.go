package interp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
)

// builtinFunc is a utility command run in the calling context. Unlike
// special builtins these cannot divert control flow; they just produce an
// exit status.
type builtinFunc func(fm *frame, args []string) int

var builtins = map[string]builtinFunc{
	"jobs":    builtinJobs,
	"fg":      builtinFg,
	"bg":      builtinBg,
	"kill":    builtinKill,
	"wait":    builtinWait,
	"suspend": builtinSuspend,
	"true":    func(*frame, []string) int { return 0 },
	"false":   func(*frame, []string) int { return 1 },
	"echo":    builtinEcho,
	"cd":      builtinCd,
	"pwd":     builtinPwd,
}

func builtinJobs(fm *frame, args []string) int {
	opts, rest, okFlag := fm.getopt(args, "lp")
	if !okFlag {
		return StatusBadCommandLine
	}
	jt := fm.in.jobs
	jt.drain()

	var list []*Job
	if len(rest) == 0 {
		for _, j := range jt.jobs {
			list = append(list, j)
		}
		sort.Slice(list, func(a, b int) bool { return list[a].id < list[b].id })
	} else {
		for _, spec := range rest {
			j, err := jt.resolve(spec)
			if err != nil {
				fm.diagText("jobs: %v", err)
				return StatusFailure
			}
			list = append(list, j)
		}
	}

	out := fm.files.stdOr(1, os.Stdout)
	for _, j := range list {
		if opts.isSet('p') {
			fmt.Fprintln(out, j.pgid)
		} else {
			fmt.Fprintln(out, jt.format(j, opts.isSet('l')))
		}
		j.everReported = true
		j.reportedState = j.state
		if j.state == Done {
			jt.remove(j)
		}
	}
	return 0
}

func builtinFg(fm *frame, args []string) int {
	if !fm.jobControlActive() {
		fm.diagText("fg: no job control")
		return StatusFailure
	}
	jt := fm.in.jobs
	jt.drain()
	spec := "%%"
	if len(args) > 0 {
		spec = args[0]
	}
	j, err := jt.resolve(spec)
	if err != nil {
		fm.diagText("fg: %v", err)
		return StatusFailure
	}
	if j.state == Done {
		fm.diagText("fg: job has terminated")
		jt.remove(j)
		return StatusFailure
	}
	fmt.Fprintln(fm.files.stdOr(1, os.Stdout), j.command)

	// The job leaves the table while it owns the foreground; a stop puts
	// it back under a fresh id.
	jt.remove(j)
	j.inForeground = true
	tok := fm.in.term.acquire(j.pgid)
	if err := requestContinue(j.pgid, j.procs); err != nil {
		fm.diagText("fg: %v", err)
	}
	// Mark constituents running right away; the continue events confirm
	// it, but the wait loop must not mistake the old stopped states for a
	// freshly stopped job.
	for _, p := range j.procs {
		p.stopped = false
	}
	var last *process
	if len(j.procs) > 0 {
		last = j.procs[len(j.procs)-1]
	}
	r, _ := fm.waitForeground(fgWait{procs: j.procs, last: last, pgid: j.pgid, command: j.command})
	tok.release()
	return r.Status
}

func builtinBg(fm *frame, args []string) int {
	if !fm.jobControlActive() {
		fm.diagText("bg: no job control")
		return StatusFailure
	}
	jt := fm.in.jobs
	jt.drain()
	specs := args
	if len(specs) == 0 {
		specs = []string{"%%"}
	}
	for _, spec := range specs {
		j, err := jt.resolve(spec)
		if err != nil {
			fm.diagText("bg: %v", err)
			return StatusFailure
		}
		if j.state == Done {
			fm.diagText("bg: job has terminated")
			continue
		}
		if err := requestContinue(j.pgid, j.procs); err != nil {
			fm.diagText("bg: %v", err)
			return StatusFailure
		}
		for _, p := range j.procs {
			p.stopped = false
		}
		j.recomputeState()
		j.everReported = true
		j.reportedState = j.state
		fmt.Fprintf(fm.files.stdOr(1, os.Stdout), "[%d] %s &\n", j.id, j.command)
	}
	return 0
}

// parseSignalSpec resolves a kill-style signal operand: a name with or
// without the SIG prefix, or a number.
func parseSignalSpec(spec string) (syscall.Signal, bool) {
	if n, err := strconv.Atoi(spec); err == nil {
		return syscall.Signal(n), true
	}
	name := strings.TrimPrefix(strings.ToUpper(spec), "SIG")
	sig, found := signalByName[name]
	return sig, found
}

func builtinKill(fm *frame, args []string) int {
	sig := signalByName["TERM"]
	out := fm.files.stdOr(1, os.Stdout)

	for len(args) > 0 && strings.HasPrefix(args[0], "-") && args[0] != "--" {
		flag := args[0][1:]
		args = args[1:]
		switch {
		case flag == "l":
			return killListSignals(fm, out, args)
		case flag == "s" || flag == "n":
			if len(args) == 0 {
				fm.badCommandLine("kill: option -%v requires an argument", flag)
				return StatusBadCommandLine
			}
			s, found := parseSignalSpec(args[0])
			if !found {
				fm.diagText("kill: %v: invalid signal specification", args[0])
				return StatusFailure
			}
			sig = s
			args = args[1:]
		default:
			s, found := parseSignalSpec(flag)
			if !found {
				fm.diagText("kill: %v: invalid signal specification", flag)
				return StatusFailure
			}
			sig = s
		}
	}
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	if len(args) == 0 {
		fm.badCommandLine("kill: usage: kill [-s signal | -signal] pid | jobspec ...")
		return StatusBadCommandLine
	}

	status := 0
	jt := fm.in.jobs
	jt.drain()
	for _, target := range args {
		if strings.HasPrefix(target, "%") {
			j, err := jt.resolve(target)
			if err != nil {
				fm.diagText("kill: %v", err)
				status = StatusFailure
				continue
			}
			if err := fm.in.signalJob(j, sig); err != nil {
				fm.diagText("kill: %v", err)
				status = StatusFailure
			}
			continue
		}
		pid, err := strconv.Atoi(target)
		if err != nil {
			fm.diagText("kill: %v: arguments must be process or job IDs", target)
			status = StatusFailure
			continue
		}
		proc, err := os.FindProcess(pid)
		if err == nil {
			err = proc.Signal(sig)
		}
		if err != nil {
			fm.diagText("kill: (%v): %v", pid, err)
			status = StatusFailure
		}
	}
	return status
}

func killListSignals(fm *frame, out *os.File, args []string) int {
	if len(args) > 0 {
		for _, arg := range args {
			n, err := strconv.Atoi(arg)
			if err != nil {
				fm.diagText("kill: %v: invalid signal specification", arg)
				return StatusFailure
			}
			if n > StatusSignalBase {
				n -= StatusSignalBase
			}
			name := canonicalSignalName(syscall.Signal(n))
			if name == "" {
				fm.diagText("kill: %v: invalid signal specification", arg)
				return StatusFailure
			}
			fmt.Fprintln(out, name)
		}
		return 0
	}
	names := make([]string, 0, len(signalByName))
	for name := range signalByName {
		if !signalAliases[name] {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(a, b int) bool {
		return signalByName[names[a]] < signalByName[names[b]]
	})
	fmt.Fprintln(out, strings.Join(names, " "))
	return 0
}

func builtinWait(fm *frame, args []string) int {
	jt := fm.in.jobs
	if len(args) > 0 && args[0] == "-n" {
		return waitNextDone(fm, jt)
	}
	if len(args) == 0 {
		fm.in.WaitAll()
		return 0
	}
	status := 0
	for _, spec := range args {
		var j *Job
		jt.drain()
		if strings.HasPrefix(spec, "%") {
			resolved, err := jt.resolve(spec)
			if err != nil {
				fm.diagText("wait: %v", err)
				status = StatusCommandNotFound
				continue
			}
			j = resolved
		} else {
			pid, err := strconv.Atoi(spec)
			if err != nil {
				fm.diagText("wait: %v: not a pid or valid job spec", spec)
				status = StatusBadCommandLine
				continue
			}
			for _, cand := range jt.jobs {
				for _, p := range cand.procs {
					if p.pid == pid {
						j = cand
					}
				}
			}
			if j == nil {
				// Not a child of this shell.
				status = StatusCommandNotFound
				continue
			}
		}
		for j.state == Running {
			ev, chOk := <-jt.events
			if !chOk {
				break
			}
			jt.apply(ev)
		}
		if j.state == Stopped {
			status = stopStatus(j.procs)
			continue
		}
		status = j.lastStatus()
		jt.remove(j)
	}
	return status
}

// waitNextDone blocks until some job finishes and reports its status. Jobs
// that already finished are consumed first, lowest id first.
func waitNextDone(fm *frame, jt *jobTable) int {
	jt.drain()
	for {
		var next *Job
		anyLive := false
		for _, j := range jt.jobs {
			switch j.state {
			case Done:
				if next == nil || j.id < next.id {
					next = j
				}
			case Running:
				anyLive = true
			}
		}
		if next != nil {
			status := next.lastStatus()
			jt.remove(next)
			return status
		}
		if !anyLive {
			fm.diagText("wait: no child processes running")
			return StatusCommandNotFound
		}
		ev, chOk := <-jt.events
		if !chOk {
			return StatusCommandNotFound
		}
		jt.apply(ev)
	}
}

func builtinSuspend(fm *frame, args []string) int {
	if err := suspendSelf(); err != nil {
		fm.diagText("suspend: %v", err)
		return StatusFailure
	}
	return 0
}

func builtinEcho(fm *frame, args []string) int {
	newline := true
	if len(args) > 0 && args[0] == "-n" {
		newline = false
		args = args[1:]
	}
	out := fm.files.stdOr(1, os.Stdout)
	if newline {
		fmt.Fprintln(out, strings.Join(args, " "))
	} else {
		fmt.Fprint(out, strings.Join(args, " "))
	}
	return 0
}

func builtinCd(fm *frame, args []string) int {
	var dir string
	switch {
	case len(args) == 0:
		dir = fm.variables.values["HOME"]
		if dir == "" {
			fm.diagText("cd: HOME not set")
			return StatusFailure
		}
	case args[0] == "-":
		dir = fm.variables.values["OLDPWD"]
		if dir == "" {
			fm.diagText("cd: OLDPWD not set")
			return StatusFailure
		}
		fmt.Fprintln(fm.files.stdOr(1, os.Stdout), dir)
	default:
		dir = args[0]
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(*fm.cwd, dir)
	}
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		fm.diagText("cd: %v", err)
		return StatusFailure
	}
	if !info.IsDir() {
		fm.diagText("cd: %v: not a directory", dir)
		return StatusFailure
	}
	fm.variables.values["OLDPWD"] = *fm.cwd
	fm.variables.values["PWD"] = dir
	*fm.cwd = dir
	return 0
}

func builtinPwd(fm *frame, args []string) int {
	fmt.Fprintln(fm.files.stdOr(1, os.Stdout), *fm.cwd)
	return 0
}
