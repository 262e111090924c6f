package agent

import (
	"errors"
	"fmt"
)

var ErrTurnLimit = errors.New("tool turn limit reached")

// ToolNotFoundError is folded back to the model like any tool failure.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// ToolExecutionError wraps a handler failure. It never ends a run.
type ToolExecutionError struct {
	Name string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// MalformedToolInputError means the accumulated tool arguments did not form
// a JSON object. It ends the run.
type MalformedToolInputError struct {
	ToolUseID string
	Name      string
	Err       error
}

func (e *MalformedToolInputError) Error() string {
	return fmt.Sprintf("malformed input for tool %s (%s): %v", e.Name, e.ToolUseID, e.Err)
}

func (e *MalformedToolInputError) Unwrap() error {
	return e.Err
}

// TransportError is a failure opening or reading the provider stream.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider stream: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a provider event sequence the loop refuses to interpret,
// such as a second tool_use block opening before the first one closed.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "provider protocol: " + e.Reason
}

// toolErrorMessage is what the model sees for a failed call.
func toolErrorMessage(err error) string {
	var execErr *ToolExecutionError
	if errors.As(err, &execErr) {
		return execErr.Err.Error()
	}
	return err.Error()
}
