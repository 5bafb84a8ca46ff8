package swill

import "context"

// Hooks holds the lifecycle callback lists invoked by the [Dispatcher], in
// the order documented in spec.md §4.6. Each hook is a list of callbacks,
// invoked sequentially.
type Hooks struct {
	BeforeConnection       []func(ctx context.Context, conn *Connection)
	AfterAccept            []func(ctx context.Context, conn *Connection)
	BeforeRequest          []func(ctx context.Context, call *callEntry, resp *Response, f *EncapsulatedRequest)
	BeforeRequestData      []func(ctx context.Context, call *callEntry, f *EncapsulatedRequest)
	BeforeRequestMessage   []func(ctx context.Context, call *callEntry, data []byte)
	BeforeLeadingMetadata  []func(ctx context.Context, call *callEntry, md map[string]any)
	BeforeResponseMessage  []func(ctx context.Context, call *callEntry, value any)
	BeforeTrailingMetadata []func(ctx context.Context, call *callEntry, md map[string]any)
	AfterRequest           []func(ctx context.Context, call *callEntry)
	AfterConnection        []func(ctx context.Context, conn *Connection)
}

func (h *Hooks) runBeforeConnection(ctx context.Context, conn *Connection) {
	for _, fn := range h.BeforeConnection {
		fn(ctx, conn)
	}
}

func (h *Hooks) runAfterAccept(ctx context.Context, conn *Connection) {
	for _, fn := range h.AfterAccept {
		fn(ctx, conn)
	}
}

func (h *Hooks) runBeforeRequest(ctx context.Context, call *callEntry, resp *Response, f *EncapsulatedRequest) {
	for _, fn := range h.BeforeRequest {
		fn(ctx, call, resp, f)
	}
}

func (h *Hooks) runBeforeRequestData(ctx context.Context, call *callEntry, f *EncapsulatedRequest) {
	for _, fn := range h.BeforeRequestData {
		fn(ctx, call, f)
	}
}

func (h *Hooks) runBeforeRequestMessage(ctx context.Context, call *callEntry, data []byte) {
	for _, fn := range h.BeforeRequestMessage {
		fn(ctx, call, data)
	}
}

func (h *Hooks) runBeforeLeadingMetadata(ctx context.Context, call *callEntry, md map[string]any) {
	for _, fn := range h.BeforeLeadingMetadata {
		fn(ctx, call, md)
	}
}

func (h *Hooks) runBeforeResponseMessage(ctx context.Context, call *callEntry, value any) {
	for _, fn := range h.BeforeResponseMessage {
		fn(ctx, call, value)
	}
}

func (h *Hooks) runBeforeTrailingMetadata(ctx context.Context, call *callEntry, md map[string]any) {
	for _, fn := range h.BeforeTrailingMetadata {
		fn(ctx, call, md)
	}
}

func (h *Hooks) runAfterRequest(ctx context.Context, call *callEntry) {
	for _, fn := range h.AfterRequest {
		fn(ctx, call)
	}
}

func (h *Hooks) runAfterConnection(ctx context.Context, conn *Connection) {
	for _, fn := range h.AfterConnection {
		fn(ctx, conn)
	}
}
