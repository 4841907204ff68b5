package dispatch

import "fmt"

// Phase is a step in the life of one dispatch.
type Phase uint8

const (
	PhaseReceived Phase = iota
	PhaseValidating
	PhaseValidationFailed
	PhaseValidated
	PhaseInvoking
	PhaseSucceeded
	PhaseFailed
	PhaseMapping
	PhaseMapped
)

var phaseNames = [...]string{
	PhaseReceived:         "received",
	PhaseValidating:       "validating",
	PhaseValidationFailed: "validation_failed",
	PhaseValidated:        "validated",
	PhaseInvoking:         "invoking",
	PhaseSucceeded:        "succeeded",
	PhaseFailed:           "failed",
	PhaseMapping:          "mapping",
	PhaseMapped:           "mapped",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", p)
}

var phaseEdges = map[Phase][]Phase{
	PhaseReceived:   {PhaseValidating},
	PhaseValidating: {PhaseValidationFailed, PhaseValidated},
	PhaseValidated:  {PhaseInvoking},
	PhaseInvoking:   {PhaseSucceeded, PhaseFailed},
	PhaseFailed:     {PhaseMapping},
	PhaseMapping:    {PhaseMapped},
}

// Terminal reports whether no further phase follows p.
func (p Phase) Terminal() bool {
	return len(phaseEdges[p]) == 0
}

// PhaseObserver is told about every phase a dispatch enters.
type PhaseObserver func(tool string, phase Phase)

// tracker enforces forward-only movement through the phase graph.
type tracker struct {
	tool     string
	current  Phase
	observer PhaseObserver
}

func newTracker(tool string, observer PhaseObserver) *tracker {
	t := &tracker{tool: tool, current: PhaseReceived, observer: observer}
	t.notify()
	return t
}

func (t *tracker) advance(next Phase) {
	for _, allowed := range phaseEdges[t.current] {
		if allowed == next {
			t.current = next
			t.notify()
			return
		}
	}
	panic(fmt.Sprintf("dispatch: illegal phase transition %s -> %s", t.current, next))
}

func (t *tracker) notify() {
	if t.observer != nil {
		t.observer(t.tool, t.current)
	}
}
