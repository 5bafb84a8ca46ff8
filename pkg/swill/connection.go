package swill

import (
	"context"
	"net/http"
	"sync"

	"github.com/lithammer/shortuuid/v4"
)

// DefaultSendQueueSize bounds the number of outbound frames a [Connection]
// will buffer before a producing handler goroutine blocks on enqueue. This
// is the backpressure primitive spec.md §4.4 calls for; 256 in-flight
// frames bounds memory to a few hundred KiB at typical payload sizes while
// giving handlers enough slack to avoid needless blocking on bursty fan-out.
const DefaultSendQueueSize = 256

// HandshakeInfo is an immutable snapshot of the WebSocket upgrade request
// that established a [Connection].
type HandshakeInfo struct {
	Method               string
	Scheme               string
	Path                 string
	RawQuery             string
	Headers              http.Header
	RemoteAddr           string
	OfferedSubprotocols  []string
}

type outboundFrame struct {
	opcode byte // see pkg/websocket.Opcode, duplicated here to avoid an import cycle
	data   []byte
}

// Connection holds negotiated handshake state, the outbound send queue, and
// the live-call map for one WebSocket connection. Grounded on the teacher's
// pkg/websocket/conn.go (reader/writer channel split) and
// original_source/server/swill/_connection.py.
type Connection struct {
	ID          string
	Subprotocol string
	Handshake   HandshakeInfo

	// Auth hook results (see pkg/swill/authn) may stash identity details
	// here; the core never inspects this field.
	Principal any

	outbound chan outboundFrame

	callsMu sync.Mutex
	calls   map[callKey]*callEntry

	onClose func(*CloseConnection)
}

// SetCloseHandler installs the callback invoked when a handler raises
// [CloseConnection]. Called by [Serve] before processing any frames.
func (c *Connection) SetCloseHandler(fn func(*CloseConnection)) {
	c.onClose = fn
}

// NewConnection constructs a [Connection] with a freshly generated ID and a
// bounded outbound queue of [DefaultSendQueueSize].
func NewConnection(hs HandshakeInfo, subprotocol string) *Connection {
	return NewConnectionWithQueueSize(hs, subprotocol, DefaultSendQueueSize)
}

// NewConnectionWithQueueSize is [NewConnection] with an explicit outbound
// queue bound, e.g. for a deployment that wants more slack than
// [DefaultSendQueueSize] under bursty fan-out.
func NewConnectionWithQueueSize(hs HandshakeInfo, subprotocol string, queueSize int) *Connection {
	if queueSize <= 0 {
		queueSize = DefaultSendQueueSize
	}
	return &Connection{
		ID:          shortuuid.New(),
		Subprotocol: subprotocol,
		Handshake:   hs,
		outbound:    make(chan outboundFrame, queueSize),
		calls:       make(map[callKey]*callEntry),
	}
}

// enqueueRaw blocks until the frame is accepted onto the bounded send
// queue; it takes no context and waits for as long as the queue is full.
func (c *Connection) enqueueRaw(data []byte) {
	c.outbound <- outboundFrame{data: data}
}

// NextOutbound blocks for the next frame a handler enqueued for delivery
// to the client, or until ctx is done. Exposed for transports and test
// harnesses (see pkg/swill/swilltest) that need to drain frames without
// going through [Serve].
func (c *Connection) NextOutbound(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.outbound:
		return f.data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connection) getCall(key callKey) (*callEntry, bool) {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	ce, ok := c.calls[key]
	return ce, ok
}

func (c *Connection) putCall(key callKey, ce *callEntry) {
	c.callsMu.Lock()
	c.calls[key] = ce
	c.callsMu.Unlock()
}

func (c *Connection) deleteCall(key callKey) {
	c.callsMu.Lock()
	delete(c.calls, key)
	c.callsMu.Unlock()
}

// LiveCallCount returns the number of calls currently in flight on this
// connection. Exposed mainly for tests and introspection.
func (c *Connection) LiveCallCount() int {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	return len(c.calls)
}
