package agent

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes.
const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeTaskNotFound      = -32001
	CodeTaskNotCancelable = -32002
)

// Sentinel errors for task handling
var (
	// ErrTaskNotFound indicates the requested task does not exist
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotCancelable indicates the task already reached a terminal state
	ErrTaskNotCancelable = errors.New("task cannot be canceled")

	// ErrEmptyMessage indicates a message without any text content
	ErrEmptyMessage = errors.New("message has no text content")
)

// TaskError carries the id of the task an operation failed on.
type TaskError struct {
	TaskID string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.TaskID)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsTaskNotFound checks if the error indicates a task was not found
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsTaskNotCancelable checks if the error indicates a task was already finished
func IsTaskNotCancelable(err error) bool {
	return errors.Is(err, ErrTaskNotCancelable)
}

// toRPCError maps an error to its JSON-RPC representation.
func toRPCError(err error) *JSONRPCError {
	var rpcErr *JSONRPCError
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case IsTaskNotFound(err):
		return &JSONRPCError{Code: CodeTaskNotFound, Message: err.Error()}
	case IsTaskNotCancelable(err):
		return &JSONRPCError{Code: CodeTaskNotCancelable, Message: err.Error()}
	case errors.Is(err, ErrEmptyMessage):
		return &JSONRPCError{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &JSONRPCError{Code: CodeInternalError, Message: "internal error"}
	}
}
