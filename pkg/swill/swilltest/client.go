// Package swilltest provides an in-process Swill test harness: it drives
// a [swill.Dispatcher] directly, with no real WebSocket underneath,
// letting tests send request frames and assert on the resulting response
// frames synchronously. Grounded on
// original_source/server/swill/testing.py's SwillTestClient/
// SwillTestRequest, adapted from Python's async context managers to Go's
// explicit setup/teardown.
package swilltest

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tzrikka/swill/pkg/swill"
)

// Client drives a [swill.Dispatcher] in-process, standing in for a real
// WebSocket connection and transport.
type Client struct {
	Dispatcher *swill.Dispatcher
	Conn       *swill.Connection
	ctx        context.Context
	cancel     context.CancelFunc
	nextSeq    atomic.Uint64
}

// NewClient constructs a [Client] around d, with a synthetic connection
// carrying no handshake metadata beyond an empty header set.
func NewClient(ctx context.Context, d *swill.Dispatcher) *Client {
	ctx, cancel := context.WithCancel(ctx)
	conn := swill.NewConnection(swill.HandshakeInfo{}, "swill/1")

	for _, fn := range d.Hooks.BeforeConnection {
		fn(ctx, conn)
	}
	for _, fn := range d.Hooks.AfterAccept {
		fn(ctx, conn)
	}

	return &Client{Dispatcher: d, Conn: conn, ctx: ctx, cancel: cancel}
}

// Close runs the connection's after_connection hooks and releases the
// client's context.
func (c *Client) Close() {
	for _, fn := range c.Dispatcher.Hooks.AfterConnection {
		fn(c.ctx, c.Conn)
	}
	c.cancel()
}

// Call is one in-flight RPC call opened by a [Client], tracking its own
// sequence number so concurrent calls on the same Client don't collide.
type Call struct {
	client *Client
	rpc    string
	seq    uint64
}

// NewCall allocates a fresh sequence number and returns a handle for
// driving one call to rpc.
func (c *Client) NewCall(rpc string) *Call {
	return &Call{client: c, rpc: rpc, seq: c.nextSeq.Add(1)}
}

// Send encodes payload (nil for a framing-only frame, e.g. END_OF_STREAM
// or CANCEL) and feeds it to the dispatcher as if it arrived over the
// wire.
func (call *Call) Send(reqType swill.RequestType, payload any, metadata map[string]any) error {
	data, err := swill.EncodePayload(payload)
	if err != nil {
		return fmt.Errorf("failed to encode test request payload: %w", err)
	}

	req := &swill.EncapsulatedRequest{
		Seq:      call.seq,
		Data:     data,
		RPC:      call.rpc,
		Type:     reqType,
		Metadata: metadata,
	}

	raw, err := msgpack.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode test request envelope: %w", err)
	}

	return call.client.Dispatcher.Dispatch(call.client.ctx, call.client.Conn, raw)
}

// Message is the decoded form of one outbound frame, returned by
// [Call.Receive].
type Message struct {
	Seq              uint64
	Type             swill.ResponseType
	Data             msgpack.RawMessage
	LeadingMetadata  map[string]any
	TrailingMetadata map[string]any
}

// Receive blocks for the next frame the handler sent back, regardless of
// which call on the connection produced it (tests that multiplex several
// calls on one [Client] should filter on Message.Seq themselves, mirroring
// a real client's demultiplexing).
func (c *Client) Receive(ctx context.Context) (*Message, error) {
	raw, err := c.Conn.NextOutbound(ctx)
	if err != nil {
		return nil, err
	}

	resp := &swill.EncapsulatedResponse{}
	if err := msgpack.Unmarshal(raw, resp); err != nil {
		return nil, fmt.Errorf("failed to decode test response envelope: %w", err)
	}

	return &Message{
		Seq:              resp.Seq,
		Type:             resp.Type,
		Data:             resp.Data,
		LeadingMetadata:  resp.LeadingMetadata,
		TrailingMetadata: resp.TrailingMetadata,
	}, nil
}

// Receive is sugar for the Client-level [Client.Receive], for call sites
// that already have a [Call] in hand.
func (call *Call) Receive(ctx context.Context) (*Message, error) {
	return call.client.Receive(ctx)
}
