package wsserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/tzrikka/swill/pkg/swill"
	"github.com/tzrikka/swill/pkg/websocket"
)

// connAdapter implements [swill.Transport] against a server-side
// [websocket.Conn]. Swill only ever sends/receives binary messages.
type connAdapter struct {
	conn *websocket.Conn
}

func newAdapter(conn *websocket.Conn) *connAdapter {
	return &connAdapter{conn: conn}
}

func (a *connAdapter) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-a.conn.IncomingMessages():
		if !ok {
			return nil, errors.New("WebSocket connection closed")
		}
		if msg.Opcode != websocket.OpcodeBinary {
			return nil, fmt.Errorf("unexpected Swill frame opcode %s, want binary", msg.Opcode)
		}
		return msg.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *connAdapter) Send(ctx context.Context, data []byte) error {
	select {
	case err := <-a.conn.SendBinaryMessage(data):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close starts the WebSocket closing handshake with code; a code outside
// 1000-4999 is sent as 1000. The reason is not sent: [websocket.Conn.Close]
// always sends an empty close reason.
func (a *connAdapter) Close(code int, _ string) error {
	status := websocket.StatusNormalClosure
	if code >= 1000 && code <= 4999 {
		status = websocket.StatusCode(code) //nolint:gosec // range-checked above
	}
	a.conn.Close(status)
	return nil
}

var _ swill.Transport = (*connAdapter)(nil)
