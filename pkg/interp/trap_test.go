package interp

import (
	"strconv"
	"strings"
	"testing"
)

func TestParseTrapCondition(t *testing.T) {
	tests := []struct {
		spec     string
		wantName string
		wantOK   bool
	}{
		{"EXIT", "EXIT", true},
		{"exit", "EXIT", true},
		{"0", "EXIT", true},
		{"ERR", "ERR", true},
		{"DEBUG", "DEBUG", true},
		{"INT", "INT", true},
		{"SIGINT", "INT", true},
		{"sigterm", "TERM", true},
		{"2", "INT", true},
		{"15", "TERM", true},
		{"NOSUCHSIG", "", false},
		{"9999", "", false},
	}
	for _, test := range tests {
		name, _, gotOK := parseTrapCondition(test.spec)
		if gotOK != test.wantOK || name != test.wantName {
			t.Errorf("parseTrapCondition(%q) = %q, %v; want %q, %v",
				test.spec, name, gotOK, test.wantName, test.wantOK)
		}
	}
}

// Platforms with historical alias names (CLD for CHLD and so on) must
// resolve the shared number to the canonical name every time.
func TestAliasSignalNumbersResolveCanonically(t *testing.T) {
	for alias := range signalAliases {
		sig, found := signalByName[alias]
		if !found {
			t.Fatalf("alias %q is not in the signal table", alias)
		}
		name, _, gotOK := parseTrapCondition(strconv.Itoa(int(sig)))
		if !gotOK {
			t.Fatalf("signal number %d did not resolve", int(sig))
		}
		if signalAliases[name] {
			t.Errorf("number %d resolved to alias %q, want the canonical name", int(sig), name)
		}
		if got := signalConditionName(sig); signalAliases[got] {
			t.Errorf("condition name for %d is alias %q, want the canonical name", int(sig), got)
		}
	}
}

func TestExitTrapRunsOnce(t *testing.T) {
	in, status, out := evalCapture(t, "trap 'echo bye' EXIT")
	if status != 0 {
		t.Fatalf("status = %v, want 0", status)
	}
	in.OnExit()
	in.OnExit()
	if got := out(); got != "bye\n" {
		t.Errorf("output = %q, want the EXIT trap to run exactly once", got)
	}
}

func TestErrTrap(t *testing.T) {
	status, output := evalOutput(t, "trap 'echo err-ran' ERR\nfalse\ntrue")
	if status != 0 {
		t.Errorf("status = %v, want 0", status)
	}
	if output != "err-ran\n" {
		t.Errorf("output = %q, want the ERR trap to fire once, for false only", output)
	}
}

func TestErrTrapDoesNotRecurse(t *testing.T) {
	// The handler itself fails; the guard keeps it from firing again.
	status, output := evalOutput(t, "trap 'echo handled; false' ERR\nfalse\ntrue")
	if status != 0 {
		t.Errorf("status = %v, want 0", status)
	}
	if output != "handled\n" {
		t.Errorf("output = %q, want a single firing", output)
	}
}

func TestDebugTrapPreservesStatus(t *testing.T) {
	status, output := evalOutput(t, "trap 'false' DEBUG\ntrue\necho $?")
	if status != 0 {
		t.Errorf("status = %v, want 0", status)
	}
	if output != "0\n" {
		t.Errorf("$? after a DEBUG trap = %q, want 0: handlers must not clobber it", output)
	}
}

func TestSignalTrapServicedBetweenCommands(t *testing.T) {
	in, status, out := evalCapture(t, "trap 'echo got-usr1' USR1")
	if status != 0 {
		t.Skipf("USR1 not available: status %v", status)
	}
	defer in.Eval("trap - USR1")

	// Inject the signal the way the runtime would deliver it.
	in.traps.pending <- signalByName["USR1"]
	in.Eval(":")
	if got := out(); got != "got-usr1\n" {
		t.Errorf("output = %q, want the USR1 handler to run at the next service point", got)
	}
}

func TestTrapIgnoreAndReset(t *testing.T) {
	in, status, out := evalCapture(t, "trap '' TERM\ntrap -p")
	defer out()
	if status != 0 {
		t.Fatalf("status = %v, want 0", status)
	}
	if _, found := in.traps.handlers["TERM"]; !found {
		t.Errorf("trap '' TERM did not register an ignore entry")
	}
	in.Eval("trap - TERM")
	if _, found := in.traps.handlers["TERM"]; found {
		t.Errorf("trap - TERM did not clear the entry")
	}
}

func TestFormatTraps(t *testing.T) {
	in, status, out := evalCapture(t, "trap 'echo bye' EXIT\ntrap 'echo int' INT\ntrap")
	defer in.Eval("trap - INT")
	if status != 0 {
		t.Fatalf("status = %v, want 0", status)
	}
	output := out()
	for _, want := range []string{"trap -- 'echo bye' EXIT", "trap -- 'echo int' INT"} {
		if !strings.Contains(output, want) {
			t.Errorf("trap output %q is missing %q", output, want)
		}
	}
}

func TestNumericTrapResets(t *testing.T) {
	in, status, out := evalCapture(t, "trap 'echo hup' HUP\ntrap 1")
	defer out()
	if status != 0 {
		t.Fatalf("status = %v, want 0", status)
	}
	if _, found := in.traps.handlers["HUP"]; found {
		t.Errorf("trap 1 did not reset the HUP handler")
	}
}
