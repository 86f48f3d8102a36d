package interp

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// ProcessEvent describes one process-lifecycle notification. The side
// channel exists for external tooling; nothing in the engine depends on a
// subscriber being present.
type ProcessEvent struct {
	Event string    `json:"event"` // "spawn" or "exit"
	Pid   int       `json:"pid,omitempty"`
	Argv  []string  `json:"argv"`
	Dir   string    `json:"dir,omitempty"`
	Exit  int       `json:"exit,omitempty"`
	Time  time.Time `json:"time"`
}

// ProcessNotifier receives process-lifecycle notifications. Implementations
// must be safe for concurrent use: exit notifications arrive from watcher
// goroutines.
type ProcessNotifier interface {
	ProcessSpawned(ProcessEvent)
	ProcessExited(ProcessEvent)
}

func (fm *frame) notifySpawn(p *process, spec launchSpec) {
	if fm.in.notifier == nil {
		return
	}
	fm.in.notifier.ProcessSpawned(ProcessEvent{
		Event: "spawn",
		Pid:   p.pid,
		Argv:  append([]string{p.command}, spec.args...),
		Dir:   *fm.cwd,
		Time:  time.Now(),
	})
}

func notifyExit(notifier ProcessNotifier, p *process, status int) {
	if notifier == nil {
		return
	}
	notifier.ProcessExited(ProcessEvent{
		Event: "exit",
		Pid:   p.pid,
		Argv:  []string{p.command},
		Exit:  status,
		Time:  time.Now(),
	})
}

// JSONLinesNotifier writes one JSON object per event, newline-delimited, in
// the shape tooling can replay without knowing the shell's internals.
type JSONLinesNotifier struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLinesNotifier(w io.Writer) *JSONLinesNotifier {
	return &JSONLinesNotifier{enc: json.NewEncoder(w)}
}

func (n *JSONLinesNotifier) ProcessSpawned(ev ProcessEvent) { n.write(ev) }
func (n *JSONLinesNotifier) ProcessExited(ev ProcessEvent)  { n.write(ev) }

func (n *JSONLinesNotifier) write(ev ProcessEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// Encoding errors are swallowed: the side channel must never affect
	// execution.
	_ = n.enc.Encode(ev)
}
