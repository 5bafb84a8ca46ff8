package swill

import (
	"context"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// itemQueue is the FIFO backing a [StreamingRequest]'s inbound items. It
// exposes the three signals a streaming request needs: item-available,
// close (end of stream, drain remaining items then stop), and cancel
// (stop immediately, regardless of queued items). Grounded on the
// producer/consumer channel idiom in the teacher's
// Client.relayMessages/replaceConn, generalized from a 1:1 relay to a
// general queue with an extra cancel signal.
type itemQueue struct {
	mu        chan struct{} // 1-buffered mutex, avoids importing sync for this alone
	buf       []msgpack.RawMessage
	notify    chan struct{}
	closed    bool
	cancelled bool
}

func newItemQueue() *itemQueue {
	q := &itemQueue{
		mu:     make(chan struct{}, 1),
		notify: make(chan struct{}, 1),
	}
	q.mu <- struct{}{}
	return q
}

func (q *itemQueue) lock()   { <-q.mu }
func (q *itemQueue) unlock() { q.mu <- struct{}{} }

func (q *itemQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Push enqueues an item. Safe to call after Close or Cancel: the item is
// then dropped here and never buffered, so Next() never returns it.
func (q *itemQueue) Push(item msgpack.RawMessage) {
	q.lock()
	if !q.closed && !q.cancelled {
		q.buf = append(q.buf, item)
	}
	q.unlock()
	q.signal()
}

// Close marks the stream as ended once the buffered items are drained.
func (q *itemQueue) Close() {
	q.lock()
	q.closed = true
	q.unlock()
	q.signal()
}

// Cancel marks the stream as cancelled. Any subsequent Next() call fails
// with [ErrRequestCancelled], regardless of what remains buffered.
func (q *itemQueue) Cancel() {
	q.lock()
	q.cancelled = true
	q.unlock()
	q.signal()
}

// Next blocks until an item is available, the queue is closed and drained
// (returns io.EOF), the queue is cancelled (returns [ErrRequestCancelled]),
// or ctx is done.
func (q *itemQueue) Next(ctx context.Context) (msgpack.RawMessage, error) {
	for {
		q.lock()
		switch {
		case q.cancelled:
			q.unlock()
			return nil, ErrRequestCancelled
		case len(q.buf) > 0:
			item := q.buf[0]
			q.buf = q.buf[1:]
			q.unlock()
			return item, nil
		case q.closed:
			q.unlock()
			return nil, io.EOF
		}
		q.unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
