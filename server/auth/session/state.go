package session

// State is the stage of one authorization attempt.
type State int

const (
	StateInitiated State = iota
	StateCodeIssued
	StateExchanged
)

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateCodeIssued:
		return "code_issued"
	case StateExchanged:
		return "exchanged"
	}
	return "unknown"
}
