package telemetry

type ActionCategory int

const (
	Testing ActionCategory = iota
	Fuzzing
	Reproducing
)

func (a ActionCategory) String() string {
	switch a {
	case Testing:
		return "testing"
	case Fuzzing:
		return "fuzzing"
	case Reproducing:
		return "reproducing"
	default:
		return "unknown"
	}
}
