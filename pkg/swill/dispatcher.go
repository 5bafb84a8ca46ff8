package swill

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"reflect"
)

// ErrorHandlerFunc is a user-registered exception handler, matched either by
// the exact Go type of the routed error, or by an application error's
// numeric code.
type ErrorHandlerFunc func(ctx context.Context, conn *Connection, seq uint64, err error)

// Dispatcher owns the handler registry, the lifecycle hooks, and the frame
// routing logic described in spec.md §4.6.
type Dispatcher struct {
	Hooks Hooks

	handlers    map[string]*HandlerDescriptor
	errorByType map[reflect.Type]ErrorHandlerFunc
	errorByCode map[int32]ErrorHandlerFunc
	logger      *slog.Logger
}

// NewDispatcher constructs an empty [Dispatcher] and registers the built-in
// introspection handler.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		handlers:    make(map[string]*HandlerDescriptor),
		errorByType: make(map[reflect.Type]ErrorHandlerFunc),
		errorByCode: make(map[int32]ErrorHandlerFunc),
		logger:      logger,
	}
	d.Register(introspectionHandler(d))
	return d
}

// OnError registers fn to handle every routed error whose concrete type
// matches exampleErr's, per spec.md §7's per-kind exception router. It
// overrides routeError's built-in handling for that type (including the
// built-in Go error kinds: pass e.g. a *ValidationError or
// *HandlerNotFound to intercept them). exampleErr's own field values are
// ignored; only its type is used as the map key.
func (d *Dispatcher) OnError(exampleErr error, fn ErrorHandlerFunc) {
	d.errorByType[reflect.TypeOf(exampleErr)] = fn
}

// OnApplicationErrorCode registers fn to handle a routed *ApplicationError
// whose Code matches, per spec.md §7's "separate map may route application
// errors by numeric code." Checked before the generic *ApplicationError
// case (and before any [OnError] registered for *ApplicationError itself).
func (d *Dispatcher) OnApplicationErrorCode(code int32, fn ErrorHandlerFunc) {
	d.errorByCode[code] = fn
}

// Register adds a handler descriptor to the registry, keyed by its Name.
func (d *Dispatcher) Register(h *HandlerDescriptor) {
	d.handlers[h.Name] = h
}

// Handlers returns every registered, non-internal handler descriptor, for
// use by the introspection handler.
func (d *Dispatcher) Handlers() []*HandlerDescriptor {
	out := make([]*HandlerDescriptor, 0, len(d.handlers))
	for _, h := range d.handlers {
		if !h.Internal {
			out = append(out, h)
		}
	}
	return out
}

// Dispatch decodes one inbound WebSocket binary message and routes it per
// spec.md §4.6: feed an existing call, drop an orphaned CANCEL/
// END_OF_STREAM, answer an unknown RPC with NOT_FOUND, or open a new call
// and invoke its handler in a fresh goroutine.
//
// Dispatch itself always returns nil: a handler that raises
// [CloseConnection] delivers it asynchronously, from its own goroutine, by
// invoking the connection's close handler (see [Serve]). The return value
// exists so future synchronous-error routing (e.g. a malformed envelope
// that should itself terminate the connection) has somewhere to go.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *Connection, raw []byte) error {
	req, err := DecodeEnvelope(raw)
	if err != nil {
		d.logger.Error("failed to decode inbound envelope", slog.Any("error", err))
		emitError(conn, 0, CodeInternalError, "malformed request envelope", nil)
		return nil
	}

	key := callKey{RPC: req.RPC, Seq: req.Seq}

	if ce, ok := conn.getCall(key); ok {
		d.Hooks.runBeforeRequestData(ctx, ce, req)
		if err := ce.ProcessFrame(req); err != nil {
			d.routeError(ctx, conn, req.Seq, err)
		}
		return nil
	}

	if req.Type == RequestCancel || req.Type == RequestEndOfStream {
		d.logger.Warn("dropping frame for unknown call", slog.String("rpc", req.RPC),
			slog.Uint64("seq", req.Seq), slog.String("type", req.Type.String()))
		return nil
	}

	desc, ok := d.handlers[req.RPC]
	if !ok {
		d.routeError(ctx, conn, req.Seq, &HandlerNotFound{RPC: req.RPC})
		return nil
	}

	ce := newCallEntry(ctx, key, desc, d)
	response := &Response{
		sendImmediate: func(m map[string]any) error {
			emitMetadata(conn, key.Seq, m)
			return nil
		},
		hooks:   &d.Hooks,
		hookCtx: ce.ctx,
		call:    ce,
	}

	conn.putCall(key, ce)

	d.Hooks.runBeforeRequest(ctx, ce, response, req)

	if err := ce.ProcessFrame(req); err != nil {
		conn.deleteCall(key)
		d.routeError(ctx, conn, req.Seq, err)
		return nil
	}

	go d.runHandler(ce.ctx, conn, ce, response)

	return nil
}

// runHandler invokes the handler descriptor's closure, then performs the
// final teardown step spec.md §4.6 mandates unconditionally: remove the key
// from the live-call map and invoke after_request.
func (d *Dispatcher) runHandler(ctx context.Context, conn *Connection, ce *callEntry, response *Response) {
	defer ce.cancel()
	defer conn.deleteCall(ce.key)
	defer d.Hooks.runAfterRequest(ctx, ce)

	if err := ce.desc.invoke(ctx, conn, ce, response); err != nil {
		var cc *CloseConnection
		if errors.As(err, &cc) {
			d.closeConnection(conn, cc)
			return
		}
		d.routeError(ctx, conn, ce.key.Seq, err)
	}
}

// closeConnection forwards a handler-raised [CloseConnection] to the
// connection loop, which owns the transport and performs the actual close.
func (d *Dispatcher) closeConnection(conn *Connection, cc *CloseConnection) {
	if conn.onClose != nil {
		conn.onClose(cc)
		return
	}
	d.logger.Error("unhandled CloseConnection with no connection loop attached",
		slog.Int("code", cc.Code), slog.String("reason", cc.Reason))
}

// routeError classifies an error per spec.md §7 and emits the
// corresponding ERROR frame, unless it is [ErrRequestCancelled] (suppressed)
// or a *CloseConnection (the caller is responsible for connection teardown).
func (d *Dispatcher) routeError(ctx context.Context, conn *Connection, seq uint64, err error) {
	if errors.Is(err, ErrRequestCancelled) {
		return
	}
	var cc *CloseConnection
	if errors.As(err, &cc) {
		return
	}

	var ve *ValidationError
	var hnf *HandlerNotFound
	var reqErr *RequestError
	var appErr *ApplicationError
	var serErr *SerializationError
	var deserErr *DeserializationError

	switch {
	case errors.As(err, &appErr):
		if fn, ok := d.errorByCode[appErr.Code]; ok {
			fn(ctx, conn, seq, err)
			return
		}
		if fn, ok := d.errorByType[reflect.TypeOf(appErr)]; ok {
			fn(ctx, conn, seq, err)
			return
		}
		emitError(conn, seq, ErrorCode(appErr.Code), appErr.Message, appErr.Data)
	case errors.As(err, &ve):
		if fn, ok := d.errorByType[reflect.TypeOf(ve)]; ok {
			fn(ctx, conn, seq, err)
			return
		}
		emitError(conn, seq, CodeValidationError, ve.Error(), ve.Fields)
	case errors.As(err, &hnf):
		if fn, ok := d.errorByType[reflect.TypeOf(hnf)]; ok {
			fn(ctx, conn, seq, err)
			return
		}
		emitError(conn, seq, CodeNotFound, hnf.Error(), nil)
	case errors.As(err, &reqErr):
		if fn, ok := d.errorByType[reflect.TypeOf(reqErr)]; ok {
			fn(ctx, conn, seq, err)
			return
		}
		emitError(conn, seq, CodeInternalError, reqErr.Error(), nil)
	case errors.As(err, &serErr), errors.As(err, &deserErr):
		t := reflect.TypeOf(serErr)
		if serErr == nil {
			t = reflect.TypeOf(deserErr)
		}
		if fn, ok := d.errorByType[t]; ok {
			fn(ctx, conn, seq, err)
			return
		}
		emitError(conn, seq, CodeInternalError, err.Error(), nil)
	default:
		if fn, ok := d.errorByType[reflect.TypeOf(err)]; ok {
			fn(ctx, conn, seq, err)
			return
		}
		d.logger.Error("unhandled error while feeding call", slog.Uint64("seq", seq), slog.Any("error", err))
		emitError(conn, seq, CodeInternalError, "internal error", nil)
	}
}

func newCallEntry(ctx context.Context, key callKey, desc *HandlerDescriptor, d *Dispatcher) *callEntry {
	cctx, cancel := context.WithCancel(ctx)
	ce := &callEntry{key: key, desc: desc, hooks: &d.Hooks, dispatcher: d, ctx: cctx, cancel: cancel}
	if desc.RequestStreams {
		ce.kind = streamUnary
		if desc.ResponseStreams {
			ce.kind = streamStream
		}
		ce.streamReq = newStreamingRequest()
	} else {
		ce.kind = unaryUnary
		if desc.ResponseStreams {
			ce.kind = unaryStream
		}
		ce.unaryReq = &UnaryRequest{}
	}
	return ce
}

// finishUnaryOut implements spec.md §4.6's unary-out emission rule.
func finishUnaryOut[Resp any](ctx context.Context, conn *Connection, ce *callEntry, response *Response, result Resp, err error) error {
	if errors.Is(err, ErrRequestCancelled) {
		return nil
	}
	if err != nil {
		var cc *CloseConnection
		if errors.As(err, &cc) {
			return cc
		}
		routeApplicationError(ctx, ce.dispatcher, conn, ce.key.Seq, err)
		return nil
	}
	if ce.Cancelled() {
		return nil
	}

	data, encErr := EncodePayload(result)
	if encErr != nil {
		emitError(conn, ce.key.Seq, CodeInternalError, encErr.Error(), nil)
		return nil
	}

	// Fire in spec.md §4.6's listed order: leading metadata, response
	// message, trailing metadata.
	leading := response.ConsumeLeadingMetadata()
	ce.hooks.runBeforeResponseMessage(ctx, ce, result)
	trailing := response.TrailingMetadata()

	emitMessage(conn, ce.key.Seq, data, leading, trailing)
	return nil
}

// finishStreamOut implements spec.md §4.6's stream-out emission rule: emit
// a MESSAGE per item (attaching leading metadata once), stopping early and
// suppressing END_OF_STREAM if the call is cancelled mid-stream.
func finishStreamOut[Resp any](ctx context.Context, conn *Connection, ce *callEntry, response *Response, seq iter.Seq2[Resp, error]) error {
	cancelledMidStream := false

	for v, err := range seq {
		if ce.Cancelled() {
			cancelledMidStream = true
			break
		}
		if err != nil {
			var cc *CloseConnection
			if errors.As(err, &cc) {
				return cc
			}
			if !errors.Is(err, ErrRequestCancelled) {
				routeApplicationError(ctx, ce.dispatcher, conn, ce.key.Seq, err)
			}
			return nil
		}

		data, encErr := EncodePayload(v)
		if encErr != nil {
			emitError(conn, ce.key.Seq, CodeInternalError, encErr.Error(), nil)
			return nil
		}

		// Leading metadata only actually fires its hook once, on the first
		// item (see Response.ConsumeLeadingMetadata).
		leading := response.ConsumeLeadingMetadata()
		ce.hooks.runBeforeResponseMessage(ctx, ce, v)
		emitStreamMessage(conn, ce.key.Seq, data, leading)
	}

	if cancelledMidStream || ce.Cancelled() {
		return nil
	}

	emitEndOfStream(conn, ce.key.Seq, response.ConsumeLeadingMetadata(), response.TrailingMetadata())
	return nil
}

// routeApplicationError emits the ERROR frame for an error a handler
// returned after its response was already (at least partly) in flight,
// consulting the dispatcher's OnError/OnApplicationErrorCode registries
// first, exactly as routeError does for errors raised while feeding a
// frame.
func routeApplicationError(ctx context.Context, d *Dispatcher, conn *Connection, seq uint64, err error) {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		if fn, ok := d.errorByCode[appErr.Code]; ok {
			fn(ctx, conn, seq, err)
			return
		}
		if fn, ok := d.errorByType[reflect.TypeOf(appErr)]; ok {
			fn(ctx, conn, seq, err)
			return
		}
		emitError(conn, seq, ErrorCode(appErr.Code), appErr.Message, appErr.Data)
		return
	}
	if fn, ok := d.errorByType[reflect.TypeOf(err)]; ok {
		fn(ctx, conn, seq, err)
		return
	}
	emitError(conn, seq, CodeInternalError, err.Error(), nil)
}
