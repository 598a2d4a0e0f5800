package dfu

import "fmt"

// PhaseError reports the upgrade phase that failed. Err is the underlying
// cause, usually a *protocol.Error.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("firmware upgrade failed while %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// StateError indicates that the device reported an unexpected image state.
type StateError struct {
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("unexpected image state: %s", e.Message)
}
