package swill

import (
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"
)

// emitFrame encodes and enqueues one outbound envelope, logging (rather
// than failing the call) if encoding itself somehow fails - at that
// point there is no remaining channel to report the failure back to the
// client on.
func emitFrame(conn *Connection, r *EncapsulatedResponse) {
	b, err := EncodeEnvelope(r)
	if err != nil {
		slog.Default().Error("failed to encode outbound envelope", slog.Any("error", err))
		return
	}
	conn.enqueueRaw(b)
}

// emitMessage sends a unary MESSAGE response, attaching leading metadata
// (if the handler set and hasn't yet sent it) and trailing metadata (if
// any) to this terminal frame.
func emitMessage(conn *Connection, seq uint64, data msgpack.RawMessage, leading, trailing map[string]any) {
	emitFrame(conn, &EncapsulatedResponse{
		Seq:              seq,
		Data:             data,
		Type:             ResponseMessage,
		LeadingMetadata:  leading,
		TrailingMetadata: trailing,
	})
}

// emitStreamMessage sends one item of a streaming response. Leading
// metadata, if any, is attached only to the first such frame (the caller
// is responsible for passing non-nil leading exactly once, via
// [Response.ConsumeLeadingMetadata]).
func emitStreamMessage(conn *Connection, seq uint64, data msgpack.RawMessage, leading map[string]any) {
	emitFrame(conn, &EncapsulatedResponse{
		Seq:             seq,
		Data:            data,
		Type:            ResponseMessage,
		LeadingMetadata: leading,
	})
}

// emitEndOfStream terminates a streaming response, carrying trailing
// metadata (and leading metadata, if the handler never emitted any items
// and so never sent it).
func emitEndOfStream(conn *Connection, seq uint64, leading, trailing map[string]any) {
	emitFrame(conn, &EncapsulatedResponse{
		Seq:              seq,
		Type:             ResponseEndOfStream,
		LeadingMetadata:  leading,
		TrailingMetadata: trailing,
	})
}

// emitMetadata sends a standalone METADATA frame, used when a handler
// calls [Response.SetLeadingMetadata] with sendImmediately set.
func emitMetadata(conn *Connection, seq uint64, md map[string]any) {
	emitFrame(conn, &EncapsulatedResponse{
		Seq:             seq,
		Type:            ResponseMetadata,
		LeadingMetadata: md,
	})
}

// emitError sends an ERROR frame for seq. It does not end the call itself:
// removing the call from the live-call map is left to the caller.
func emitError(conn *Connection, seq uint64, code ErrorCode, message string, data any) {
	payload, err := EncodePayload(&ErrorMessage{Code: int32(code), Message: message, Data: data})
	if err != nil {
		payload = nullPayload
	}
	emitFrame(conn, &EncapsulatedResponse{
		Seq:  seq,
		Data: payload,
		Type: ResponseError,
	})
}
