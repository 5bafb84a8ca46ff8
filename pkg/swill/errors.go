package swill

import (
	"errors"
	"fmt"

	"github.com/tzrikka/swill/pkg/swill/validate"
)

// ValidationError is raised when a decoded payload fails schema
// validation (pkg/swill/validate). Its Fields slice is surfaced verbatim
// as ERROR frame data so clients can render field-level feedback.
type ValidationError = validate.Error

// SerializationError wraps a failure to encode a value for the wire.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return fmt.Sprintf("serialization error: %v", e.Err) }
func (e *SerializationError) Unwrap() error  { return e.Err }

// DeserializationError wraps a failure to decode bytes from the wire, or a
// mismatch between the decoded value and its declared shape. Seq is the
// originating request's sequence number, when known.
type DeserializationError struct {
	Seq uint64
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialization error (seq=%d): %v", e.Seq, e.Err)
}
func (e *DeserializationError) Unwrap() error { return e.Err }

// HandlerNotFound is raised when a MESSAGE frame names an RPC that has no
// registered handler.
type HandlerNotFound struct {
	RPC string
}

func (e *HandlerNotFound) Error() string { return fmt.Sprintf("no handler registered for %q", e.RPC) }

// RequestError is raised when the client violates a framing invariant,
// e.g. sending METADATA after a streaming request's opening frame.
type RequestError struct {
	Seq    uint64
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request error (seq=%d): %s", e.Seq, e.Reason)
}

// ErrRequestCancelled signals cooperative cancellation of a call, either
// because the client sent CANCEL or because the connection disconnected.
// It is never surfaced on the wire; the dispatcher suppresses it.
var ErrRequestCancelled = errors.New("swill: request cancelled")

// ApplicationError is a user-level error raised by handler code, carrying a
// numeric code and message that are surfaced verbatim as an ERROR frame.
type ApplicationError struct {
	Code    int32
	Message string
	Data    any
}

func (e *ApplicationError) Error() string { return fmt.Sprintf("%s (code=%d)", e.Message, e.Code) }

// CloseConnection terminates the whole WebSocket connection with the given
// code and reason. Raised before the upgrade completes, Code is interpreted
// as an HTTP status (0-999); raised afterwards, it is a WebSocket close
// code (>=1000).
type CloseConnection struct {
	Code   int
	Reason string
}

func (e *CloseConnection) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("connection closed (code=%d)", e.Code)
	}
	return fmt.Sprintf("connection closed (code=%d): %s", e.Code, e.Reason)
}

// ErrorCode is the wire-level taxonomy carried in an [ErrorMessage].Code,
// using HTTP-status-like values.
type ErrorCode int32

const (
	CodeBadRequest      ErrorCode = 400
	CodeUnauthorized    ErrorCode = 401
	CodeForbidden       ErrorCode = 403
	CodeNotFound        ErrorCode = 404
	CodeInternalError   ErrorCode = 500
	CodeInvalidRPC      ErrorCode = 501
	CodeValidationError ErrorCode = 422
)

// HTTPStatusForClose substitutes 403 for an out-of-range pre-upgrade close
// code raised by a [CloseConnection], and leaves post-upgrade (>=1000)
// codes untouched. Used by callers (e.g. wsserver's pre-upgrade
// authentication gate) that need to turn a CloseConnection raised before
// the WebSocket handshake completes into an actual HTTP response status.
func HTTPStatusForClose(code int) int {
	if code >= 1000 {
		return code
	}
	if code < 200 || code > 999 {
		return 403
	}
	return code
}

// wsCloseCodeForClose maps a [CloseConnection] code raised after the
// upgrade completed to a valid WebSocket close code.
func wsCloseCodeForClose(code int) int {
	if code < 1000 {
		return 1000
	}
	return code
}
