package swill

import (
	"context"
	"iter"
	"reflect"
)

// callKind distinguishes the four call shapes spec.md §1 names.
type callKind int

const (
	unaryUnary callKind = iota
	unaryStream
	streamUnary
	streamStream
)

// callEntry is the live state of one in-flight [Call], keyed by (rpc, seq)
// in a [Connection]'s call map.
type callEntry struct {
	key        callKey
	kind       callKind
	desc       *HandlerDescriptor
	hooks      *Hooks
	dispatcher *Dispatcher

	unaryReq  *UnaryRequest
	streamReq *StreamingRequest

	ctx    context.Context
	cancel context.CancelFunc
}

// Cancelled reports whether the client cancelled this call.
func (c *callEntry) Cancelled() bool {
	if c.unaryReq != nil {
		return c.unaryReq.Cancelled()
	}
	return c.streamReq.Cancelled()
}

// ProcessFrame feeds an inbound frame (the opening frame as well as every
// later one) to this call's request state machine, then - on a successfully
// processed MESSAGE frame - fires before_request_message, matching
// _request.py's Request/StreamingRequest.process_message firing it right
// after a message is decoded onto the request.
func (c *callEntry) ProcessFrame(f *EncapsulatedRequest) error {
	var err error
	if c.unaryReq != nil {
		err = c.unaryReq.ProcessFrame(f)
	} else {
		err = c.streamReq.ProcessFrame(f)
	}

	if err == nil && f.Type == RequestMessage && c.hooks != nil {
		c.hooks.runBeforeRequestMessage(c.ctx, c, f.Data)
	}

	return err
}

// Call is the typed, read-only view of a unary request handed to a
// UnaryUnary or UnaryStream handler.
type Call[Req any] struct {
	entry *callEntry
	value Req
	ok    bool
}

// Value returns the decoded request payload, and whether one was ever
// received. A unary call is only started by a MESSAGE frame (an opening
// METADATA frame is rejected as a request error), so a handler normally
// sees ok=true.
func (c *Call[Req]) Value() (Req, bool) { return c.value, c.ok }

// Cancelled reports whether the client cancelled this call.
func (c *Call[Req]) Cancelled() bool { return c.entry.Cancelled() }

// Metadata returns the client-supplied metadata from the opening frame.
func (c *Call[Req]) Metadata() map[string]any { return c.entry.unaryReq.Metadata }

// StreamCall is the typed view of a streaming request handed to a
// StreamUnary or StreamStream handler.
type StreamCall[Req any] struct {
	entry *callEntry
}

// Cancelled reports whether the client cancelled this call.
func (c *StreamCall[Req]) Cancelled() bool { return c.entry.Cancelled() }

// Metadata returns the client-supplied metadata from the opening frame.
func (c *StreamCall[Req]) Metadata() map[string]any { return c.entry.streamReq.Metadata }

// Next blocks for and decodes the next inbound item, returning io.EOF when
// the client sent END_OF_STREAM and the queue is drained, or
// [ErrRequestCancelled] if the client sent CANCEL.
func (c *StreamCall[Req]) Next(ctx context.Context) (Req, error) {
	var zero Req
	raw, err := c.entry.streamReq.Next(ctx)
	if err != nil {
		return zero, err
	}

	var v Req
	if err := DecodePayload(raw, &v); err != nil {
		return zero, err
	}
	return v, nil
}

// HandlerDescriptor is the registration-time-compiled shape of one
// registered RPC: its arity, streaming flags, declared types, and the
// closure that actually invokes it. Built once by one of
// UnaryUnary/UnaryStream/StreamUnary/StreamStream; [Dispatcher.Dispatch]
// never touches reflection on its hot path.
type HandlerDescriptor struct {
	Name            string
	RequestStreams  bool
	ResponseStreams bool
	TakesResponse   bool
	RequestType     reflect.Type
	ResponseType    reflect.Type
	Internal        bool

	// invoke runs the handler to completion, emitting response frames as it
	// goes. A non-nil return is always a *CloseConnection: every other
	// error kind is already turned into an ERROR frame before invoke
	// returns, per spec.md §7's propagation policy.
	invoke func(ctx context.Context, conn *Connection, ce *callEntry, resp *Response) error
}

// UnaryUnary registers a handler whose request and response are each a
// single message.
func UnaryUnary[Req, Resp any](name string, fn func(context.Context, *Call[Req]) (Resp, error)) *HandlerDescriptor {
	var req Req
	var resp Resp
	return &HandlerDescriptor{
		Name:         name,
		RequestType:  reflect.TypeOf(req),
		ResponseType: reflect.TypeOf(resp),
		invoke: func(ctx context.Context, conn *Connection, ce *callEntry, response *Response) error {
			call, err := decodeUnaryCall[Req](ce)
			if err != nil {
				emitError(conn, ce.key.Seq, CodeInternalError, err.Error(), nil)
				return nil
			}

			result, err := fn(ctx, call)
			return finishUnaryOut(ctx, conn, ce, response, result, err)
		},
	}
}

// UnaryUnaryResponse registers a handler whose request and response are
// each a single message, arity-2: it also receives the call's *Response,
// so it can call SetLeadingMetadata/SetTrailingMetadata on its own
// response before returning it, per spec.md §4.6's generic "a second
// parameter exists and is typed as Response, the handler is arity-2" rule
// (not restricted to the two streaming-response shapes). Grounded on
// original_source/server/tests/test_handlers.py's
// test_create_request_with_response, which registers exactly this
// non-streaming, response-arg handler shape.
func UnaryUnaryResponse[Req, Resp any](name string, fn func(context.Context, *Call[Req], *Response) (Resp, error)) *HandlerDescriptor {
	var req Req
	var resp Resp
	return &HandlerDescriptor{
		Name:          name,
		TakesResponse: true,
		RequestType:   reflect.TypeOf(req),
		ResponseType:  reflect.TypeOf(resp),
		invoke: func(ctx context.Context, conn *Connection, ce *callEntry, response *Response) error {
			call, err := decodeUnaryCall[Req](ce)
			if err != nil {
				emitError(conn, ce.key.Seq, CodeInternalError, err.Error(), nil)
				return nil
			}

			result, err := fn(ctx, call, response)
			return finishUnaryOut(ctx, conn, ce, response, result, err)
		},
	}
}

// UnaryStream registers a handler whose request is a single message and
// whose response is a stream of messages.
func UnaryStream[Req, Resp any](name string, fn func(context.Context, *Call[Req], *Response) (iter.Seq[Resp], error)) *HandlerDescriptor {
	var req Req
	var resp Resp
	return &HandlerDescriptor{
		Name:            name,
		ResponseStreams: true,
		TakesResponse:   true,
		RequestType:     reflect.TypeOf(req),
		ResponseType:    reflect.TypeOf(resp),
		invoke: func(ctx context.Context, conn *Connection, ce *callEntry, response *Response) error {
			call, err := decodeUnaryCall[Req](ce)
			if err != nil {
				emitError(conn, ce.key.Seq, CodeInternalError, err.Error(), nil)
				return nil
			}

			seq, err := fn(ctx, call, response)
			if err != nil {
				return finishUnaryOut(ctx, conn, ce, response, *new(Resp), err)
			}

			return finishStreamOut(ctx, conn, ce, response, func(yield func(Resp, error) bool) {
				if seq == nil {
					return
				}
				for v := range seq {
					if !yield(v, nil) {
						return
					}
				}
			})
		},
	}
}

// StreamUnary registers a handler whose request is a stream of messages
// and whose response is a single message.
func StreamUnary[Req, Resp any](name string, fn func(context.Context, *StreamCall[Req]) (Resp, error)) *HandlerDescriptor {
	var req Req
	var resp Resp
	return &HandlerDescriptor{
		Name:           name,
		RequestStreams: true,
		RequestType:    reflect.TypeOf(req),
		ResponseType:   reflect.TypeOf(resp),
		invoke: func(ctx context.Context, conn *Connection, ce *callEntry, response *Response) error {
			call := &StreamCall[Req]{entry: ce}
			result, err := fn(ctx, call)
			return finishUnaryOut(ctx, conn, ce, response, result, err)
		},
	}
}

// StreamUnaryResponse registers a handler whose request is a stream of
// messages and whose response is a single message, arity-2: it also
// receives the call's *Response, for the same reason as
// [UnaryUnaryResponse].
func StreamUnaryResponse[Req, Resp any](name string, fn func(context.Context, *StreamCall[Req], *Response) (Resp, error)) *HandlerDescriptor {
	var req Req
	var resp Resp
	return &HandlerDescriptor{
		Name:           name,
		RequestStreams: true,
		TakesResponse:  true,
		RequestType:    reflect.TypeOf(req),
		ResponseType:   reflect.TypeOf(resp),
		invoke: func(ctx context.Context, conn *Connection, ce *callEntry, response *Response) error {
			call := &StreamCall[Req]{entry: ce}
			result, err := fn(ctx, call, response)
			return finishUnaryOut(ctx, conn, ce, response, result, err)
		},
	}
}

// StreamStream registers a handler whose request and response are each a
// stream of messages.
func StreamStream[Req, Resp any](name string, fn func(context.Context, *StreamCall[Req], *Response) iter.Seq2[Resp, error]) *HandlerDescriptor {
	var req Req
	var resp Resp
	return &HandlerDescriptor{
		Name:            name,
		RequestStreams:  true,
		ResponseStreams: true,
		TakesResponse:   true,
		RequestType:     reflect.TypeOf(req),
		ResponseType:    reflect.TypeOf(resp),
		invoke: func(ctx context.Context, conn *Connection, ce *callEntry, response *Response) error {
			call := &StreamCall[Req]{entry: ce}
			return finishStreamOut(ctx, conn, ce, response, fn(ctx, call, response))
		},
	}
}

func decodeUnaryCall[Req any](ce *callEntry) (*Call[Req], error) {
	raw, ok := ce.unaryReq.Data()
	call := &Call[Req]{entry: ce}
	if !ok {
		return call, nil
	}

	var v Req
	if err := DecodePayload(raw, &v); err != nil {
		return nil, err
	}
	call.value = v
	call.ok = true
	return call, nil
}
