package swill

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// fakeTransport is an in-memory [Transport] for exercising [Serve] without
// a real WebSocket.
type fakeTransport struct {
	recv    chan []byte
	recvErr chan error
	sent    chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		recv:    make(chan []byte, 4),
		recvErr: make(chan error, 1),
		sent:    make(chan []byte, 16),
	}
}

func (f *fakeTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case b := <-f.recv:
		return b, nil
	case err := <-f.recvErr:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Send(ctx context.Context, data []byte) error {
	select {
	case f.sent <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Close(int, string) error { return nil }

// TestServeDisconnectCancelsAllLiveCalls covers Testable Property 12: a
// transport-level disconnect cancels [Serve]'s top-level context, which
// cascades (via the parent/child context relationship every callEntry is
// built with in newCallEntry) to every in-flight call's handler.
func TestServeDisconnectCancelsAllLiveCalls(t *testing.T) {
	d := newTestDispatcher()

	handlerErrs := make(chan error, 2)
	started := make(chan struct{}, 2)
	d.Register(StreamUnary("wait", func(ctx context.Context, call *StreamCall[int]) (int, error) {
		started <- struct{}{}
		for {
			if _, err := call.Next(ctx); err != nil {
				handlerErrs <- err
				return 0, err
			}
		}
	}))

	conn := NewConnection(HandshakeInfo{}, "swill/1")
	transport := newFakeTransport()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(context.Background(), conn, transport, d, nil)
	}()

	for _, seq := range []uint64{1, 2} {
		raw, err := msgpack.Marshal(&EncapsulatedRequest{Seq: seq, RPC: "wait", Type: RequestMessage, Data: []byte{0xc0}})
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		transport.recv <- raw
	}

	<-started
	<-started

	if got := conn.LiveCallCount(); got != 2 {
		t.Fatalf("LiveCallCount() = %d, want 2 before disconnect", got)
	}

	transport.recvErr <- io.ErrClosedPipe

	for range 2 {
		select {
		case err := <-handlerErrs:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("handler's call.Next() error = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("a live handler never observed disconnect-cascaded cancellation")
		}
	}

	select {
	case <-serveDone:
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after disconnect")
	}

	waitForCondition(t, func() bool { return conn.LiveCallCount() == 0 })
}
