package engine

import "fmt"

// ErrorCode categorizes failures raised by the procedure engine. The invoker
// maps each code onto the application error taxonomy exactly once; codes never
// leak past that boundary.
type ErrorCode string

const (
	CodeValidationError     ErrorCode = "ValidationError"
	CodeNoDataChange        ErrorCode = "NoDataChange"
	CodeEntityInUse         ErrorCode = "EntityInUse"
	CodeInsufficientBalance ErrorCode = "InsufficientBalance"
	CodeUnmetPrerequisite   ErrorCode = "UnmetPrerequisite"
	CodeLimitExceeded       ErrorCode = "LimitExceeded"
	CodeDataUnavailable     ErrorCode = "DataUnavailable"
	CodeNotAuthorized       ErrorCode = "NotAuthorized"
	CodeGeneral             ErrorCode = "General"
	CodeFatal               ErrorCode = "Fatal"
)

// Error is a coded failure reported by the procedure engine, either while
// preparing a procedure or as the error payload of a handle that reached a
// terminal failure state.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine error [%s]: %s", e.Code, e.Message)
}
