package statusc

import "fmt"

// State is where a server run is in its lifecycle.
type State struct{ string }

var (
	Idle     = State{"idle"}
	Starting = State{"starting"}
	Running  = State{"running"}
	Stopping = State{"stopping"}
)

func (s State) String() string {
	if s.string == "" {
		return Idle.string
	}
	return s.string
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch str := string(b); str {
	case Idle.string:
		*s = Idle
	case Starting.string:
		*s = Starting
	case Running.string:
		*s = Running
	case Stopping.string:
		*s = Stopping
	default:
		return fmt.Errorf("invalid state '%s'", str)
	}
	return nil
}
