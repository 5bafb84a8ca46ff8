package swill

import (
	"context"
	"errors"
	"log/slog"
)

// Transport is the minimal bidirectional binary-message channel [Serve]
// drives. pkg/websocket's server-side Conn (via pkg/wsserver's adapter)
// is the production implementation; tests substitute an in-memory one.
type Transport interface {
	// Recv blocks for the next inbound binary message, or returns an error
	// (including context cancellation or a client-initiated close).
	Recv(ctx context.Context) ([]byte, error)
	// Send writes one outbound binary message.
	Send(ctx context.Context, data []byte) error
	// Close terminates the transport with the given WebSocket close code
	// and reason.
	Close(code int, reason string) error
}

// Serve drives one [Connection]'s lifetime: a receive loop that feeds
// inbound frames to the [Dispatcher], and a send loop that drains the
// connection's outbound queue to the transport. It returns once the
// transport is closed, the context is cancelled, or a handler raises
// [CloseConnection].
//
// Grounded on the teacher's pkg/websocket/conn.go readMessages/
// writeMessages goroutine split, generalized from a single always-running
// client connection to a per-server-connection lifecycle with lifecycle
// hooks and cooperative handler cancellation.
func Serve(ctx context.Context, conn *Connection, transport Transport, d *Dispatcher, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.Hooks.runBeforeConnection(ctx, conn)
	d.Hooks.runAfterAccept(ctx, conn)
	defer d.Hooks.runAfterConnection(ctx, conn)

	var closeOnce struct {
		done bool
	}
	conn.SetCloseHandler(func(cc *CloseConnection) {
		if closeOnce.done {
			return
		}
		closeOnce.done = true
		logger.Info("closing connection", slog.String("conn_id", conn.ID),
			slog.Int("code", cc.Code), slog.String("reason", cc.Reason))
		_ = transport.Close(wsCloseCodeForClose(cc.Code), cc.Reason)
		cancel()
	})

	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-conn.outbound:
				if err := transport.Send(ctx, frame.data); err != nil {
					logger.Warn("failed to send outbound frame", slog.String("conn_id", conn.ID), slog.Any("error", err))
					cancel()
					return
				}
			}
		}
	}()

	var recvErr error
recvLoop:
	for {
		raw, err := transport.Recv(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				recvErr = err
			}
			break recvLoop
		}
		if err := d.Dispatch(ctx, conn, raw); err != nil {
			var cc *CloseConnection
			if errors.As(err, &cc) {
				d.closeConnection(conn, cc)
			}
			break recvLoop
		}
	}

	cancel()
	<-sendDone

	return recvErr
}
