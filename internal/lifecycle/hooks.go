package lifecycle

import "context"

// Phase orders the shutdown sequence. Every hook of a phase returns before
// the next phase starts.
type Phase int

const (
	// PhaseDrain stops whatever produces work: update polling, the job
	// worker and the HTTP server.
	PhaseDrain Phase = iota
	// PhaseClose releases the connections drained components were using.
	PhaseClose
)

var phases = []Phase{PhaseDrain, PhaseClose}

func (p Phase) String() string {
	switch p {
	case PhaseDrain:
		return "drain"
	case PhaseClose:
		return "close"
	default:
		return "unknown"
	}
}

// Hook is one named step of a shutdown phase.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}
