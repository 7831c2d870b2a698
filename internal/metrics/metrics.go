package metrics

// Recorder receives engine and outbox measurements.
type Recorder interface {
	// ObserveOperation records one coordinator unit of work.
	// outcome is "ok" or the error kind ("conflict", "invalid_state", ...).
	ObserveOperation(op, outcome string, seconds float64)

	// ObserveDispatch records one outbox delivery attempt.
	// result is "dispatched", "failed" or "dead".
	ObserveDispatch(result string)
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func NewNop() Nop { return Nop{} }

func (Nop) ObserveOperation(string, string, float64) {}

func (Nop) ObserveDispatch(string) {}
