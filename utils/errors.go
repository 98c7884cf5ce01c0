package utils

import "fmt"

// ArgumentError reports an invalid argument together with a fixed numeric
// code that clients can match on.
type ArgumentError struct {
	Code    int
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func NewArgumentError(code int, format string, args ...any) *ArgumentError {
	return &ArgumentError{Code: code, Message: fmt.Sprintf(format, args...)}
}
