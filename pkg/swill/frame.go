package swill

import (
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// RequestType denotes the kind of an inbound frame, as carried in an
// [EncapsulatedRequest].
type RequestType uint8

const (
	RequestMessage RequestType = iota
	RequestEndOfStream
	RequestMetadata
	RequestCancel
)

// String returns the request type's name, or its number if it's unrecognized.
func (t RequestType) String() string {
	switch t {
	case RequestMessage:
		return "message"
	case RequestEndOfStream:
		return "end_of_stream"
	case RequestMetadata:
		return "metadata"
	case RequestCancel:
		return "cancel"
	default:
		return strconv.Itoa(int(t))
	}
}

// ResponseType denotes the kind of an outbound frame, as carried in an
// [EncapsulatedResponse].
type ResponseType uint8

const (
	ResponseMessage ResponseType = iota
	ResponseEndOfStream
	ResponseMetadata
	ResponseError
)

// String returns the response type's name, or its number if it's unrecognized.
func (t ResponseType) String() string {
	switch t {
	case ResponseMessage:
		return "message"
	case ResponseEndOfStream:
		return "end_of_stream"
	case ResponseMetadata:
		return "metadata"
	case ResponseError:
		return "error"
	default:
		return strconv.Itoa(int(t))
	}
}

// EncapsulatedRequest is the envelope carried by a single inbound WebSocket
// binary message (client to server). It is encoded as a MessagePack array,
// with defaulted tail fields omitted.
type EncapsulatedRequest struct {
	Seq      uint64
	Data     msgpack.RawMessage
	RPC      string
	Type     RequestType
	Metadata map[string]any
}

// EncapsulatedResponse is the envelope carried by a single outbound
// WebSocket binary message (server to client). It is encoded as a
// MessagePack array, with defaulted tail fields omitted.
type EncapsulatedResponse struct {
	Seq              uint64
	Data             msgpack.RawMessage
	Type             ResponseType
	LeadingMetadata  map[string]any
	TrailingMetadata map[string]any
}

// ErrorMessage is the payload carried inside an [EncapsulatedResponse] whose
// Type is [ResponseError].
type ErrorMessage struct {
	Code    int32
	Message string
	Data    any `msgpack:",omitempty"`
}

// callKey uniquely identifies a live [Call] within a connection, for the
// lifetime of that call. It is released when the call terminates, and MAY
// be reused by a later call (sequence numbers are unique-while-live, not
// monotonic).
type callKey struct {
	RPC string
	Seq uint64
}
