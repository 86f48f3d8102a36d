package interp

import "fmt"

// flow is the non-local control-flow directive carried alongside every exit
// status. Composite executors examine it instead of checking sentinel
// statuses at every call site.
type flow uint8

const (
	flowNone flow = iota
	flowBreak
	flowContinue
	flowReturn
	flowExit
)

// Result is what every executable unit returns: an 8-bit exit status plus an
// optional directive. For break and continue, Levels is the 0-based count of
// loop levels still to unwind; each loop that sees a positive count
// decrements it and re-emits the directive, and consumes it at zero.
type Result struct {
	Status int
	Flow   flow
	Levels int
}

func ok(status int) Result { return Result{Status: status & 0xff} }

func breakResult(levels int) Result    { return Result{Flow: flowBreak, Levels: levels} }
func continueResult(levels int) Result { return Result{Flow: flowContinue, Levels: levels} }
func returnResult(status int) Result   { return Result{Status: status & 0xff, Flow: flowReturn} }
func exitResult(status int) Result     { return Result{Status: status & 0xff, Flow: flowExit} }

// diverted reports whether the result carries a directive that should stop
// sequential execution at the current level.
func (r Result) diverted() bool { return r.Flow != flowNone }

// unwindLoop interprets the result at a loop boundary. It returns the result
// to propagate outward and what the loop should do: stop iterating (break or
// a directive that targets an outer construct) or move on to the next
// iteration (continue at this level).
func (r Result) unwindLoop() (out Result, stop, next bool) {
	switch r.Flow {
	case flowBreak:
		if r.Levels == 0 {
			return ok(0), true, false
		}
		return breakResult(r.Levels - 1), true, false
	case flowContinue:
		if r.Levels == 0 {
			return ok(r.Status), false, true
		}
		return continueResult(r.Levels - 1), true, false
	case flowReturn, flowExit:
		return r, true, false
	}
	return r, false, false
}

func (r Result) String() string {
	switch r.Flow {
	case flowBreak:
		return fmt.Sprintf("status %v, break(%v)", r.Status, r.Levels)
	case flowContinue:
		return fmt.Sprintf("status %v, continue(%v)", r.Status, r.Levels)
	case flowReturn:
		return fmt.Sprintf("status %v, return", r.Status)
	case flowExit:
		return fmt.Sprintf("status %v, exit", r.Status)
	}
	return fmt.Sprintf("status %v", r.Status)
}
