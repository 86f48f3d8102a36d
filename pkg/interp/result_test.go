package interp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnwindLoop(t *testing.T) {
	tests := []struct {
		name     string
		in       Result
		wantOut  Result
		wantStop bool
		wantNext bool
	}{
		{"plain status", ok(3), ok(3), false, false},
		{"break this loop", breakResult(0), ok(0), true, false},
		{"break outer loop", breakResult(2), breakResult(1), true, false},
		{"continue this loop", continueResult(0), ok(0), false, true},
		{"continue outer loop", continueResult(1), continueResult(0), true, false},
		{"return passes through", returnResult(7), returnResult(7), true, false},
		{"exit passes through", exitResult(5), exitResult(5), true, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, stop, next := test.in.unwindLoop()
			if diff := cmp.Diff(test.wantOut, out); diff != "" {
				t.Errorf("out (-want +got):\n%v", diff)
			}
			if stop != test.wantStop || next != test.wantNext {
				t.Errorf("got stop %v next %v, want stop %v next %v",
					stop, next, test.wantStop, test.wantNext)
			}
		})
	}
}

func TestResultString(t *testing.T) {
	tests := []struct {
		in   Result
		want string
	}{
		{ok(0), "status 0"},
		{breakResult(1), "status 0, break(1)"},
		{continueResult(0), "status 0, continue(0)"},
		{returnResult(4), "status 4, return"},
		{exitResult(1), "status 1, exit"},
	}
	for _, test := range tests {
		if got := test.in.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}

func TestStatusTruncation(t *testing.T) {
	if got := ok(256 + 7).Status; got != 7 {
		t.Errorf("ok(263).Status = %v, want 7", got)
	}
	if got := exitResult(-1).Status; got != 255 {
		t.Errorf("exitResult(-1).Status = %v, want 255", got)
	}
}
