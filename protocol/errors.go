package protocol

import "fmt"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Implementation-defined server error codes (-32000 to -32099).
const (
	// CodeServerError is the default code for uncaught handler failures.
	CodeServerError     = -32000
	CodeNotFound        = -32001
	CodeUnauthorized    = -32002
	CodeRateLimited     = -32003
	CodePermissionError = -32099
)

// Standard error messages.
const (
	MessageParseError      = "Parse error"
	MessageInvalidRequest  = "Invalid Request"
	MessageMethodNotFound  = "Method not found"
	MessageInvalidParams   = "Invalid params"
	MessageInternalError   = "Internal error"
	MessageServerError     = "Server error"
	MessagePermissionError = "Permission error"
)

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %s (code: %d)", e.Message, e.Code)
}

// Is implements errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithData returns a copy of the error with additional data attached.
func (e *Error) WithData(data any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Data:    data,
	}
}

// NewError creates an error with an arbitrary code.
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// NewParseError creates a parse error (-32700).
func NewParseError() *Error {
	return &Error{Code: CodeParseError, Message: MessageParseError}
}

// NewInvalidRequest creates an invalid request error (-32600).
func NewInvalidRequest() *Error {
	return &Error{Code: CodeInvalidRequest, Message: MessageInvalidRequest}
}

// NewMethodNotFound creates a method not found error (-32601) carrying the
// requested method name as data.
func NewMethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: MessageMethodNotFound, Data: method}
}

// NewInvalidParams creates an invalid params error (-32602).
func NewInvalidParams() *Error {
	return &Error{Code: CodeInvalidParams, Message: MessageInvalidParams}
}

// NewInternalError creates an internal error (-32603).
func NewInternalError() *Error {
	return &Error{Code: CodeInternalError, Message: MessageInternalError}
}

// NewServerError creates a generic server error with the given code.
func NewServerError(code int) *Error {
	return &Error{Code: code, Message: MessageServerError}
}

// NewPermissionError creates a permission error (-32099).
func NewPermissionError() *Error {
	return &Error{Code: CodePermissionError, Message: MessagePermissionError}
}

// NewNotFound creates a not found error (-32001).
func NewNotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NewUnauthorized creates an unauthorized error (-32002).
func NewUnauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// NewRateLimited creates a rate limited error (-32003).
func NewRateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}
