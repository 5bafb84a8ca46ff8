package swill

import (
	"context"
	"errors"
	"sync"
)

// ErrLeadingMetadataAlreadySent is returned by [Response.SetLeadingMetadata]
// when leading metadata was already sent or consumed.
var ErrLeadingMetadataAlreadySent = errors.New("swill: leading metadata already sent")

// Response holds the outbound metadata slots of a single call. Grounded on
// original_source/server/swill/_response.py.
type Response struct {
	mu sync.Mutex

	leading     map[string]any
	leadingSent bool

	trailing map[string]any

	sendImmediate func(map[string]any) error // installed by the dispatcher

	// hooks/hookCtx/call are installed by the dispatcher so Consume
	// LeadingMetadata and TrailingMetadata can fire before_leading_metadata
	// and before_trailing_metadata at the same point _response.py's
	// consume_leading_metadata() and the call sites of its trailing_metadata
	// property do.
	hooks   *Hooks
	hookCtx context.Context
	call    *callEntry
}

// SetLeadingMetadata sets the call's leading metadata. It fails if leading
// metadata was already sent (as part of a MESSAGE frame or a prior call to
// this method with sendImmediately=true). If sendImmediately is true, an
// isolated METADATA frame is sent right away instead of waiting for the
// first response MESSAGE.
func (r *Response) SetLeadingMetadata(m map[string]any, sendImmediately bool) error {
	r.mu.Lock()
	if r.leadingSent {
		r.mu.Unlock()
		return ErrLeadingMetadataAlreadySent
	}
	r.leading = m
	if sendImmediately {
		r.leadingSent = true
	}
	send := r.sendImmediate
	r.mu.Unlock()

	if sendImmediately && send != nil {
		return send(m)
	}
	return nil
}

// SetTrailingMetadata sets the call's trailing metadata. It may be called
// at any point before the terminal outbound frame.
func (r *Response) SetTrailingMetadata(m map[string]any) {
	r.mu.Lock()
	r.trailing = m
	r.mu.Unlock()
}

// ConsumeLeadingMetadata returns the stored leading metadata exactly once;
// subsequent calls return nil. Invoked by the dispatcher when attaching
// metadata to the first outbound frame.
func (r *Response) ConsumeLeadingMetadata() map[string]any {
	r.mu.Lock()
	if r.leadingSent {
		r.mu.Unlock()
		return nil
	}
	m := r.leading
	r.leadingSent = true
	hooks, ctx, call := r.hooks, r.hookCtx, r.call
	r.mu.Unlock()

	if hooks != nil {
		hooks.runBeforeLeadingMetadata(ctx, call, m)
	}
	return m
}

// TrailingMetadata returns the stored trailing metadata, for attachment to
// the terminal outbound frame. Called exactly once per call, at the point
// the terminal frame is built, so this also fires before_trailing_metadata
// (matching the single read of the trailing_metadata property in
// _process_single_response/_process_streaming_response).
func (r *Response) TrailingMetadata() map[string]any {
	r.mu.Lock()
	m := r.trailing
	hooks, ctx, call := r.hooks, r.hookCtx, r.call
	r.mu.Unlock()

	if hooks != nil {
		hooks.runBeforeTrailingMetadata(ctx, call, m)
	}
	return m
}
