package swill

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
)

// UnaryRequest is the inbound side of a call whose request shape is a
// single message. Grounded on original_source/server/swill/_request.py.
type UnaryRequest struct {
	data      msgpack.RawMessage
	Metadata  map[string]any
	cancelled atomic.Bool
	got       atomic.Bool
}

// Cancelled reports whether the client sent CANCEL for this call.
func (r *UnaryRequest) Cancelled() bool { return r.cancelled.Load() }

// Data returns the most recently received payload, and whether one has
// ever been received.
func (r *UnaryRequest) Data() (msgpack.RawMessage, bool) {
	return r.data, r.got.Load()
}

// ProcessFrame feeds a single inbound frame into the unary request's state,
// per spec.md §4.5: MESSAGE records the still-encoded data (decoded later,
// when the handler's call is built), CANCEL sets the cancelled flag, any
// other type is a request error.
func (r *UnaryRequest) ProcessFrame(f *EncapsulatedRequest) error {
	if f.Metadata != nil && r.Metadata == nil {
		r.Metadata = f.Metadata
	}

	switch f.Type {
	case RequestMessage:
		r.data = f.Data
		r.got.Store(true)
		return nil
	case RequestCancel:
		r.cancelled.Store(true)
		return nil
	default:
		return &RequestError{Seq: f.Seq, Reason: "unary request received " + f.Type.String() + " frame"}
	}
}

// StreamingRequest is the inbound side of a call whose request shape is a
// stream of messages, backed by an [itemQueue].
type StreamingRequest struct {
	Metadata  map[string]any
	queue     *itemQueue
	cancelled atomic.Bool
	ended     atomic.Bool
	opened    atomic.Bool
}

func newStreamingRequest() *StreamingRequest {
	return &StreamingRequest{queue: newItemQueue()}
}

// Cancelled reports whether the client sent CANCEL for this call.
func (r *StreamingRequest) Cancelled() bool { return r.cancelled.Load() }

// Next blocks for the next decoded item, following the three-signal
// semantics implemented by [itemQueue.Next].
func (r *StreamingRequest) Next(ctx context.Context) (msgpack.RawMessage, error) {
	return r.queue.Next(ctx)
}

// ProcessFrame feeds a single inbound frame into the streaming request's
// state, per spec.md §4.5.
func (r *StreamingRequest) ProcessFrame(f *EncapsulatedRequest) error {
	if f.Metadata != nil && r.Metadata == nil {
		r.Metadata = f.Metadata
	}

	switch f.Type {
	case RequestCancel:
		r.cancelled.Store(true)
		r.ended.Store(true)
		r.queue.Cancel()
		return nil

	case RequestEndOfStream:
		r.ended.Store(true)
		r.queue.Close()
		return nil

	case RequestMetadata:
		if r.opened.Load() {
			return &RequestError{Seq: f.Seq, Reason: "metadata only allowed with the opening frame"}
		}
		r.opened.Store(true)
		return nil

	case RequestMessage:
		r.opened.Store(true)
		if r.ended.Load() {
			// Non-fatal: logged as a warning, item discarded.
			slog.Default().Warn("discarding MESSAGE frame received after end of stream",
				slog.String("rpc", f.RPC), slog.Uint64("seq", f.Seq))
			return nil
		}
		r.queue.Push(f.Data)
		return nil

	default:
		return &RequestError{Seq: f.Seq, Reason: "unrecognized request frame type"}
	}
}
