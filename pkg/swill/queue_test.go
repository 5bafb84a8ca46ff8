package swill

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// TestItemQueuePushThenNext covers the basic FIFO path: an item pushed
// before Next is called is returned immediately, in order.
func TestItemQueuePushThenNext(t *testing.T) {
	q := newItemQueue()
	q.Push(msgpack.RawMessage("a"))
	q.Push(msgpack.RawMessage("b"))

	ctx := context.Background()
	got, err := q.Next(ctx)
	if err != nil || string(got) != "a" {
		t.Fatalf("Next() = (%q, %v), want (\"a\", nil)", got, err)
	}
	got, err = q.Next(ctx)
	if err != nil || string(got) != "b" {
		t.Fatalf("Next() = (%q, %v), want (\"b\", nil)", got, err)
	}
}

// TestItemQueueCloseDrainsThenEOF covers Close's "drain buffered items,
// then report end of stream" contract.
func TestItemQueueCloseDrainsThenEOF(t *testing.T) {
	q := newItemQueue()
	q.Push(msgpack.RawMessage("a"))
	q.Close()

	ctx := context.Background()
	got, err := q.Next(ctx)
	if err != nil || string(got) != "a" {
		t.Fatalf("Next() after close = (%q, %v), want (\"a\", nil) - buffered items still drain", got, err)
	}

	_, err = q.Next(ctx)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Next() after drain = %v, want io.EOF", err)
	}
}

// TestItemQueueCancelIgnoresBuffer covers Cancel's "stop immediately,
// regardless of what remains buffered" contract - the opposite of Close.
func TestItemQueueCancelIgnoresBuffer(t *testing.T) {
	q := newItemQueue()
	q.Push(msgpack.RawMessage("a"))
	q.Cancel()

	_, err := q.Next(context.Background())
	if !errors.Is(err, ErrRequestCancelled) {
		t.Fatalf("Next() after cancel = %v, want ErrRequestCancelled even with a buffered item", err)
	}
}

// TestItemQueuePushAfterCloseDiscarded covers the "further pushes after
// Close/Cancel are silently discarded" rule.
func TestItemQueuePushAfterCloseDiscarded(t *testing.T) {
	q := newItemQueue()
	q.Close()
	q.Push(msgpack.RawMessage("late"))

	_, err := q.Next(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Next() after push-following-close = %v, want io.EOF (push discarded)", err)
	}
}

// TestItemQueueNextBlocksUntilPush covers Next's blocking behavior: it
// only returns once an item is pushed (or the queue is closed/cancelled,
// or ctx is done).
func TestItemQueueNextBlocksUntilPush(t *testing.T) {
	q := newItemQueue()

	type result struct {
		item msgpack.RawMessage
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		item, err := q.Next(context.Background())
		resultCh <- result{item, err}
	}()

	select {
	case <-resultCh:
		t.Fatal("Next() returned before any item was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(msgpack.RawMessage("a"))

	select {
	case r := <-resultCh:
		if r.err != nil || string(r.item) != "a" {
			t.Fatalf("Next() = (%q, %v), want (\"a\", nil)", r.item, r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not unblock after Push")
	}
}

// TestItemQueueNextUnblocksOnContextCancel covers the ctx.Done() exit path.
func TestItemQueueNextUnblocksOnContextCancel(t *testing.T) {
	q := newItemQueue()
	ctx, cancel := context.WithCancel(context.Background())

	resultCh := make(chan error, 1)
	go func() {
		_, err := q.Next(ctx)
		resultCh <- err
	}()

	cancel()

	select {
	case err := <-resultCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Next() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not unblock after ctx cancellation")
	}
}
