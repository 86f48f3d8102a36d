package interp

import (
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/reubeno/brush-sub004/pkg/parse"
)

// Trap conditions are canonical names: a signal name without the SIG prefix
// ("INT", "TERM", ...) or one of the pseudo-signals, which have no OS
// signal number and are triggered synthetically by the engine.
const (
	trapExit  = "EXIT"
	trapErr   = "ERR"
	trapDebug = "DEBUG"
)

type trapState struct {
	// handlers maps a condition to the command text run when it fires. An
	// empty string means the condition is trapped-and-ignored.
	handlers map[string]string

	// pending receives OS signals whose conditions have handlers; they are
	// serviced at the shell's own suspension points, between commands.
	pending chan os.Signal

	// depth suppresses recursive firing of the DEBUG and ERR traps while
	// one of them is already executing.
	depth int

	exitRan bool
}

func newTrapState() trapState {
	return trapState{
		handlers: make(map[string]string),
		pending:  make(chan os.Signal, 16),
	}
}

// parseTrapCondition resolves a trap operand: a name with or without the
// SIG prefix, a pseudo-signal name, or a number (0 is EXIT). The returned
// signal is nil for pseudo-signals.
func parseTrapCondition(spec string) (name string, sig os.Signal, ok bool) {
	upper := strings.ToUpper(spec)
	upper = strings.TrimPrefix(upper, "SIG")
	switch upper {
	case trapExit, trapErr, trapDebug:
		return upper, nil, true
	}
	if n, err := strconv.Atoi(upper); err == nil {
		if n == 0 {
			return trapExit, nil, true
		}
		s := syscall.Signal(n)
		if name := canonicalSignalName(s); name != "" {
			return name, s, true
		}
		return "", nil, false
	}
	if s, found := signalByName[upper]; found {
		return upper, s, true
	}
	return "", nil, false
}

// setTrap installs, ignores or resets one condition. action "-" resets to
// the default disposition; an empty action ignores the condition.
func (fm *frame) setTrap(name string, sig os.Signal, action string) {
	ts := &fm.in.traps
	switch action {
	case "-":
		delete(ts.handlers, name)
		if sig != nil {
			signal.Reset(sig)
		}
	case "":
		ts.handlers[name] = ""
		if sig != nil {
			signal.Ignore(sig)
		}
	default:
		ts.handlers[name] = action
		if sig != nil {
			signal.Notify(ts.pending, sig)
		}
	}
}

// formatTraps prints the registered traps as trap commands, the way trap
// with no operands does.
func (fm *frame) formatTraps() string {
	ts := &fm.in.traps
	names := make([]string, 0, len(ts.handlers))
	for name := range ts.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString("trap -- '" + strings.ReplaceAll(ts.handlers[name], "'", `'\''`) + "' " + name + "\n")
	}
	return b.String()
}

// servicePendingTraps runs handlers for every signal delivered since the
// last service point. Called between commands and never from inside a
// foreground wait.
func (fm *frame) servicePendingTraps() {
	for {
		select {
		case sig := <-fm.in.traps.pending:
			fm.runTrapHandler(signalConditionName(sig))
		default:
			return
		}
	}
}

func signalConditionName(sig os.Signal) string {
	if s, isSyscallSig := sig.(syscall.Signal); isSyscallSig {
		if name := canonicalSignalName(s); name != "" {
			return name
		}
	}
	return strings.ToUpper(strings.TrimPrefix(sig.String(), "signal "))
}

// canonicalSignalName maps a signal number back to one stable name. Alias
// entries (CLD for CHLD and the like) are accepted on input but never win
// the reverse lookup.
func canonicalSignalName(s syscall.Signal) string {
	for name, known := range signalByName {
		if known == s && !signalAliases[name] {
			return name
		}
	}
	return ""
}

// runTrapHandler executes one handler with the shell's last exit status
// saved and restored around it, so a trap firing between commands does not
// clobber $?. Handler failures surface only through their own status.
func (fm *frame) runTrapHandler(name string) {
	code, found := fm.in.traps.handlers[name]
	if !found || code == "" {
		return
	}
	prog, err := parse.Parse(code)
	if err != nil {
		fm.diagText("trap %v: %v", name, err)
		return
	}
	saved := fm.exec.lastPipelineStatus
	fm.program(prog)
	fm.exec.lastPipelineStatus = saved
}

// fireDebugTrap runs the DEBUG trap before a simple command, suppressed
// while a DEBUG or ERR handler is already executing.
func (fm *frame) fireDebugTrap() {
	ts := &fm.in.traps
	if ts.depth > 0 || ts.handlers[trapDebug] == "" {
		return
	}
	ts.depth++
	fm.runTrapHandler(trapDebug)
	ts.depth--
}

// fireErrTrap runs the ERR trap after a command failed, with the same
// re-entry suppression as DEBUG.
func (fm *frame) fireErrTrap(status int) {
	ts := &fm.in.traps
	if status == 0 || ts.depth > 0 || ts.handlers[trapErr] == "" {
		return
	}
	ts.depth++
	fm.runTrapHandler(trapErr)
	ts.depth--
}

// OnExit runs the EXIT trap. It is safe to call more than once during
// teardown; the trap body runs exactly once.
func (i *Interp) OnExit() {
	if i.traps.exitRan {
		return
	}
	i.traps.exitRan = true
	if i.traps.handlers[trapExit] == "" {
		return
	}
	fm := i.frame()
	fm.runTrapHandler(trapExit)
}
