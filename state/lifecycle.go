package state

import (
	"errors"
	"fmt"
)

// Lifecycle is the coarse state of the emulation session as seen by a supervisor.
//
//	initializing -> connected | crashed
//	connected    -> crashed
//
// crashed is terminal.
type Lifecycle int32

const (
	Initializing Lifecycle = iota
	Connected
	Crashed
)

// ErrInvalidTransition is returned by SetLifecycle for transitions outside the allowed set.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

func (l Lifecycle) String() string {
	switch l {
	case Initializing:
		return "initializing"
	case Connected:
		return "connected"
	case Crashed:
		return "crashed"
	default:
		return fmt.Sprintf("lifecycle(%d)", int32(l))
	}
}

// MarshalText implements encoding.TextMarshaler so the lifecycle serializes as its name.
func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifecycle) UnmarshalText(b []byte) error {
	v, err := ParseLifecycle(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLifecycle converts the text form back into a Lifecycle.
func ParseLifecycle(s string) (Lifecycle, error) {
	switch s {
	case "initializing":
		return Initializing, nil
	case "connected":
		return Connected, nil
	case "crashed":
		return Crashed, nil
	}
	return Initializing, fmt.Errorf("unknown lifecycle %q", s)
}

func canTransition(from, to Lifecycle) bool {
	switch from {
	case Initializing:
		return to == Connected || to == Crashed
	case Connected:
		return to == Crashed
	}
	return false
}

// CrashError is returned by WaitReady when the session crashed before connecting.
type CrashError struct {
	Diagnostic string
}

func (e *CrashError) Error() string {
	if e.Diagnostic == "" {
		return "controller crashed"
	}
	return "controller crashed: " + e.Diagnostic
}
