package swilltest

import (
	"context"
	"testing"
	"time"

	"github.com/tzrikka/swill/pkg/swill"
)

type echoRequest struct {
	Text string
}

type echoResponse struct {
	Text string
}

func TestClientUnaryUnary(t *testing.T) {
	d := swill.NewDispatcher(nil)
	d.Register(swill.UnaryUnary("echo", func(_ context.Context, call *swill.Call[echoRequest]) (echoResponse, error) {
		req, _ := call.Value()
		return echoResponse{Text: req.Text}, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := NewClient(ctx, d)
	defer client.Close()

	call := client.NewCall("echo")
	if err := call.Send(swill.RequestMessage, echoRequest{Text: "hello"}, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, err := call.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg.Type != swill.ResponseMessage {
		t.Fatalf("got response type %v, want message", msg.Type)
	}

	var resp echoResponse
	if err := swill.DecodePayload(msg.Data, &resp); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("got %q, want %q", resp.Text, "hello")
	}
}

func TestClientUnaryUnaryNotFound(t *testing.T) {
	d := swill.NewDispatcher(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := NewClient(ctx, d)
	defer client.Close()

	call := client.NewCall("nonexistent")
	if err := call.Send(swill.RequestMessage, echoRequest{Text: "hi"}, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, err := call.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg.Type != swill.ResponseError {
		t.Fatalf("got response type %v, want error", msg.Type)
	}
}

func TestClientStreamUnary(t *testing.T) {
	d := swill.NewDispatcher(nil)
	d.Register(swill.StreamUnary("sum", func(ctx context.Context, call *swill.StreamCall[int]) (int, error) {
		total := 0
		for {
			v, err := call.Next(ctx)
			if err != nil {
				break
			}
			total += v
		}
		return total, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := NewClient(ctx, d)
	defer client.Close()

	call := client.NewCall("sum")
	if err := call.Send(swill.RequestMessage, 1, nil); err != nil {
		t.Fatalf("Send(1): %v", err)
	}
	if err := call.Send(swill.RequestMessage, 2, nil); err != nil {
		t.Fatalf("Send(2): %v", err)
	}
	if err := call.Send(swill.RequestEndOfStream, nil, nil); err != nil {
		t.Fatalf("Send(end): %v", err)
	}

	msg, err := call.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg.Type != swill.ResponseMessage {
		t.Fatalf("got response type %v, want message", msg.Type)
	}

	var total int
	if err := swill.DecodePayload(msg.Data, &total); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if total != 3 {
		t.Errorf("got total %d, want 3", total)
	}
}
