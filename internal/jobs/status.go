// Package jobs polls long-running provider jobs until they reach a terminal state.
//
// Providers report job progress in their own vocabularies; each provider client converts its
// raw status into a Status immediately after decoding, so nothing above the client ever sees
// provider strings.
package jobs

// State is the normalized lifecycle position of a provider job.
type State int

const (
	Pending State = iota
	Processing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polling can change the state.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Status is one observation of a job. Result is meaningful only when State is Completed
// and Error only when State is Failed.
type Status[T any] struct {
	State  State
	Result T
	Error  string
}

// Done returns a Completed status carrying result.
func Done[T any](result T) Status[T] {
	return Status[T]{State: Completed, Result: result}
}

// Fail returns a Failed status carrying the provider's message.
func Fail[T any](message string) Status[T] {
	return Status[T]{State: Failed, Error: message}
}

// InProgress returns a non-terminal status.
func InProgress[T any](state State) Status[T] {
	if state.Terminal() {
		state = Processing
	}
	return Status[T]{State: state}
}
