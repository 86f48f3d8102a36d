package interp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/reubeno/brush-sub004/pkg/parse"
)

// specialBuiltinFunc is a builtin with access to the engine's control
// flow: these are the commands that produce non-plain directives or mutate
// durable shell state.
type specialBuiltinFunc func(fm *frame, args []string) Result

var specialBuiltins = map[string]specialBuiltinFunc{
	"break":    specialBreak,
	"continue": specialContinue,
	"return":   specialReturn,
	"exit":     specialExit,
	":":        func(*frame, []string) Result { return ok(0) },
	"trap":     specialTrap,
	"set":      specialSet,
	"shift":    specialShift,
	"export":   specialExport,
	"readonly": specialReadonly,
	"unset":    specialUnset,
}

func init() {
	// Registered here because these re-enter the evaluator, which would
	// otherwise make the map literal's initialization cyclic.
	specialBuiltins["eval"] = specialEval
	specialBuiltins["."] = specialSource
}

func loopCount(fm *frame, name string, args []string) (int, bool) {
	levels := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fm.badCommandLine("%v: %v: loop count must be a positive integer", name, args[0])
			return 0, false
		}
		levels = n
	}
	// A count deeper than the enclosing nesting is legal: the directive
	// keeps propagating past the outermost loop.
	return levels, true
}

func specialBreak(fm *frame, args []string) Result {
	levels, okCount := loopCount(fm, "break", args)
	if !okCount {
		return ok(StatusBadCommandLine)
	}
	if fm.loopDepth == 0 {
		fm.diagText("break: only meaningful in a loop")
		return ok(0)
	}
	return breakResult(levels - 1)
}

func specialContinue(fm *frame, args []string) Result {
	levels, okCount := loopCount(fm, "continue", args)
	if !okCount {
		return ok(StatusBadCommandLine)
	}
	if fm.loopDepth == 0 {
		fm.diagText("continue: only meaningful in a loop")
		return ok(0)
	}
	return continueResult(levels - 1)
}

func specialReturn(fm *frame, args []string) Result {
	if fm.fnDepth == 0 {
		fm.diagText("return: can only return from a function or sourced script")
		return ok(StatusBadCommandLine)
	}
	status := fm.exec.lastPipelineStatus
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fm.badCommandLine("return: %v: numeric argument required", args[0])
			return ok(StatusBadCommandLine)
		}
		status = n
	}
	return returnResult(status)
}

func specialExit(fm *frame, args []string) Result {
	status := fm.exec.lastPipelineStatus
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fm.badCommandLine("exit: %v: numeric argument required", args[0])
			return exitResult(StatusBadCommandLine)
		}
		status = n
	}
	return exitResult(status)
}

func specialTrap(fm *frame, args []string) Result {
	opts, rest, okFlag := fm.getopt(args, "lp")
	if !okFlag {
		return ok(StatusBadCommandLine)
	}
	out := fm.files.stdOr(1, os.Stdout)
	if opts.isSet('l') {
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
		return ok(0)
	}
	if opts.isSet('p') || len(rest) == 0 {
		fmt.Fprint(out, fm.formatTraps())
		return ok(0)
	}

	action := rest[0]
	conds := rest[1:]
	if _, err := strconv.Atoi(action); err == nil {
		// "trap N..." treats every operand as a condition to reset.
		action = "-"
		conds = rest
	}
	if len(conds) == 0 {
		fm.badCommandLine("trap: usage: trap [-lp] [action condition ...]")
		return ok(StatusBadCommandLine)
	}
	for _, cond := range conds {
		name, sig, condOk := parseTrapCondition(cond)
		if !condOk {
			fm.diagText("trap: %v: invalid signal specification", cond)
			return ok(StatusFailure)
		}
		fm.setTrap(name, sig, action)
	}
	return ok(0)
}

func specialSet(fm *frame, args []string) Result {
	out := fm.files.stdOr(1, os.Stdout)
	if len(args) == 0 {
		names := make([]string, 0, len(fm.variables.values))
		for name := range fm.variables.values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%v='%v'\n", name, strings.ReplaceAll(fm.variables.values[name], "'", `'\''`))
		}
		return ok(0)
	}

	for len(args) > 0 {
		arg := args[0]
		switch {
		case arg == "--":
			args = args[1:]
			fm.setPositional(args)
			return ok(0)
		case arg == "-o" || arg == "+o":
			args = args[1:]
			if len(args) == 0 {
				fmt.Fprint(out, fm.options().format(arg == "+o"))
				return ok(0)
			}
			opt, found := optionByName[args[0]]
			if !found {
				fm.badCommandLine("set: %v: unknown option", args[0])
				return ok(StatusBadCommandLine)
			}
			*fm.opts = fm.opts.with(opt, arg == "-o")
			args = args[1:]
		case strings.HasPrefix(arg, "-") && len(arg) > 1, strings.HasPrefix(arg, "+") && len(arg) > 1:
			enable := arg[0] == '-'
			for _, letter := range []byte(arg[1:]) {
				opt, found := optionByLetter[letter]
				if !found {
					fm.badCommandLine("set: -%c: unknown option", letter)
					return ok(StatusBadCommandLine)
				}
				*fm.opts = fm.opts.with(opt, enable)
			}
			args = args[1:]
		default:
			fm.setPositional(args)
			return ok(0)
		}
	}
	return ok(0)
}

// setPositional replaces $1.. in this context and in the owning instance,
// so the change outlives the current evaluation.
func (fm *frame) setPositional(params []string) {
	fm.arguments = append([]string{fm.arguments[0]}, params...)
	if fm.fnDepth == 0 {
		fm.in.arguments = fm.arguments
	}
}

func specialShift(fm *frame, args []string) Result {
	n := 1
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 0 {
			fm.badCommandLine("shift: %v: invalid count", args[0])
			return ok(StatusBadCommandLine)
		}
		n = parsed
	}
	if n > len(fm.arguments)-1 {
		fm.diagText("shift: can't shift that many")
		return ok(StatusFailure)
	}
	fm.setPositional(cloneSlice(fm.arguments[1+n:]))
	return ok(0)
}

func specialExport(fm *frame, args []string) Result {
	if len(args) == 0 || args[0] == "-p" {
		out := fm.files.stdOr(1, os.Stdout)
		names := make([]string, 0, len(fm.variables.exported))
		for name := range fm.variables.exported {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "export %v='%v'\n", name, fm.variables.values[name])
		}
		return ok(0)
	}
	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			if err := fm.setVar(name, value); err != nil {
				fm.diagText("export: %v", err)
				return ok(StatusFailure)
			}
		}
		fm.variables.exported.add(name)
	}
	return ok(0)
}

func specialReadonly(fm *frame, args []string) Result {
	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			if err := fm.setVar(name, value); err != nil {
				fm.diagText("readonly: %v", err)
				return ok(StatusFailure)
			}
		}
		fm.variables.readonly.add(name)
	}
	return ok(0)
}

func specialUnset(fm *frame, args []string) Result {
	status := 0
	for _, arg := range args {
		if arg == "-v" {
			continue
		}
		if fm.variables.readonly.has(arg) {
			fm.diagText("unset: %v: readonly variable", arg)
			status = StatusFailure
			continue
		}
		delete(fm.variables.values, arg)
		fm.variables.exported.del(arg)
	}
	return ok(status)
}

func specialEval(fm *frame, args []string) Result {
	code := strings.Join(args, " ")
	if strings.TrimSpace(code) == "" {
		return ok(0)
	}
	prog, err := parse.Parse(code)
	if err != nil {
		fm.diagText("eval: %v", err)
		return ok(StatusSyntaxError)
	}
	return fm.program(prog)
}

func specialSource(fm *frame, args []string) Result {
	if len(args) == 0 {
		fm.badCommandLine(".: filename argument required")
		return ok(StatusBadCommandLine)
	}
	path := args[0]
	if !strings.Contains(path, "/") {
		if found, status := lookPath(path, *fm.cwd, fm.pathVar()); status == 0 {
			path = found
		} else {
			path = filepath.Join(*fm.cwd, path)
		}
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(*fm.cwd, path)
	}
	text, err := os.ReadFile(path)
	if err != nil {
		fm.diagText(".: %v", err)
		return ok(StatusFailure)
	}
	prog, err := parse.Parse(string(text))
	if err != nil {
		fm.diagText(".: %v: %v", args[0], err)
		return ok(StatusSyntaxError)
	}
	fm.fnDepth++
	r := fm.program(prog)
	fm.fnDepth--
	if r.Flow == flowReturn {
		// return inside a sourced file ends the file, not the caller.
		return ok(r.Status)
	}
	return r
}
