package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrUnknownKind is returned when a kind has no registered factory.
var ErrUnknownKind = errors.New("unknown task kind")

// DecodeError describes a stored payload that could not be turned back into a task.
type DecodeError struct {
	Kind   string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Kind == "" {
		return "task payload could not be decoded: " + e.Reason
	}
	return fmt.Sprintf("%s task payload could not be decoded: %s", e.Kind, e.Reason)
}

// PanicError wraps a value recovered from a panicking Run.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Failure is the serialized form of an unexpected error, stored in the
// exception column of tasks and events.
type Failure struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// NewFailure captures err. Panics keep the stack recorded at recovery time;
// other errors record the caller's stack.
func NewFailure(err error) Failure {
	if err == nil {
		return Failure{}
	}
	f := Failure{Type: fmt.Sprintf("%T", err), Message: err.Error()}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		f.Type = "panic"
		f.Stack = string(panicErr.Stack)
	} else {
		f.Stack = string(debug.Stack())
	}
	return f
}

// Encode returns the JSON form of f.
func (f Failure) Encode() []byte {
	data, err := json.Marshal(f)
	if err != nil {
		return []byte(fmt.Sprintf(`{"type":"encode","message":%q}`, err.Error()))
	}
	return data
}

// DecodeFailure parses a stored exception blob.
func DecodeFailure(data []byte) (Failure, error) {
	var f Failure
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return Failure{}, fmt.Errorf("decode failure: %w", err)
	}
	return f, nil
}
