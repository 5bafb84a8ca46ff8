package swill

import (
	"context"
	"errors"
	"testing"
)

// TestConsumeLeadingMetadataOnce covers Testable Property 9: leading
// metadata is handed to the first outbound frame exactly once, and
// SetLeadingMetadata refuses to run again after it has been sent.
func TestConsumeLeadingMetadataOnce(t *testing.T) {
	r := &Response{}

	if err := r.SetLeadingMetadata(map[string]any{"a": 1}, false); err != nil {
		t.Fatalf("SetLeadingMetadata() error = %v", err)
	}

	got := r.ConsumeLeadingMetadata()
	if got["a"] != 1 {
		t.Fatalf("ConsumeLeadingMetadata() = %v, want {a:1}", got)
	}

	if got := r.ConsumeLeadingMetadata(); got != nil {
		t.Errorf("second ConsumeLeadingMetadata() = %v, want nil", got)
	}

	if err := r.SetLeadingMetadata(map[string]any{"b": 2}, false); !errors.Is(err, ErrLeadingMetadataAlreadySent) {
		t.Errorf("SetLeadingMetadata() after consume error = %v, want ErrLeadingMetadataAlreadySent", err)
	}
}

// TestSetLeadingMetadataSendImmediately covers the sendImmediately=true
// path: the metadata is sent right away (via the installed sendImmediate
// callback) and also counts as already-sent for later calls.
func TestSetLeadingMetadataSendImmediately(t *testing.T) {
	var sent map[string]any
	r := &Response{
		sendImmediate: func(m map[string]any) error {
			sent = m
			return nil
		},
	}

	if err := r.SetLeadingMetadata(map[string]any{"a": 1}, true); err != nil {
		t.Fatalf("SetLeadingMetadata() error = %v", err)
	}
	if sent["a"] != 1 {
		t.Errorf("sendImmediate callback got %v, want {a:1}", sent)
	}

	if err := r.SetLeadingMetadata(map[string]any{"b": 2}, true); !errors.Is(err, ErrLeadingMetadataAlreadySent) {
		t.Errorf("second SetLeadingMetadata() error = %v, want ErrLeadingMetadataAlreadySent", err)
	}

	// A later ConsumeLeadingMetadata (the dispatcher attaching metadata to
	// the first response MESSAGE) finds nothing left to attach.
	if got := r.ConsumeLeadingMetadata(); got != nil {
		t.Errorf("ConsumeLeadingMetadata() after immediate send = %v, want nil", got)
	}
}

// TestTrailingMetadataFiresHook covers the before_trailing_metadata hook
// firing with the trailing metadata, at the point the terminal frame reads it.
func TestTrailingMetadataFiresHook(t *testing.T) {
	var hooks Hooks
	var got map[string]any
	hooks.BeforeTrailingMetadata = append(hooks.BeforeTrailingMetadata, func(_ context.Context, _ *callEntry, md map[string]any) {
		got = md
	})

	r := &Response{hooks: &hooks, hookCtx: context.Background()}
	r.SetTrailingMetadata(map[string]any{"done": true})

	if out := r.TrailingMetadata(); out["done"] != true {
		t.Fatalf("TrailingMetadata() = %v, want {done:true}", out)
	}
	if got["done"] != true {
		t.Errorf("before_trailing_metadata hook saw %v, want {done:true}", got)
	}
}
