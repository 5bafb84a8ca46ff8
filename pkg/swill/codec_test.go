package swill

import (
	"bytes"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

// TestEnvelopeRoundTripUnknownTailDefaults covers Testable Property 1: an
// envelope missing its trailing fields decodes with those fields at their
// zero value, and round-trips back to the same short array (tail fields
// stay omitted, not re-added as explicit nulls).
func TestEnvelopeRoundTripUnknownTailDefaults(t *testing.T) {
	req := &EncapsulatedRequest{Seq: 7, RPC: "echo", Type: RequestMessage}
	b, err := msgpack.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if got.Seq != req.Seq || got.RPC != req.RPC || got.Type != req.Type {
		t.Errorf("DecodeEnvelope() = %+v, want %+v", got, req)
	}
	if got.Metadata != nil {
		t.Errorf("DecodeEnvelope().Metadata = %v, want nil (defaulted)", got.Metadata)
	}

	// A frame with only the sequence number present still decodes cleanly,
	// defaulting everything else.
	short, err := msgpack.Marshal([]any{uint64(9)})
	if err != nil {
		t.Fatalf("Marshal(short) error = %v", err)
	}
	got2, err := DecodeEnvelope(short)
	if err != nil {
		t.Fatalf("DecodeEnvelope(short) error = %v", err)
	}
	if got2.Seq != 9 || got2.RPC != "" || got2.Type != RequestMessage || got2.Data != nil {
		t.Errorf("DecodeEnvelope(short) = %+v, want zero-valued tail", got2)
	}

	// A frame with extra, unrecognized trailing array elements still
	// decodes the known prefix instead of erroring out.
	extra, err := msgpack.Marshal([]any{uint64(1), nil, "rpc", uint8(RequestMessage), nil, "future-field"})
	if err != nil {
		t.Fatalf("Marshal(extra) error = %v", err)
	}
	got3, err := DecodeEnvelope(extra)
	if err != nil {
		t.Fatalf("DecodeEnvelope(extra) error = %v", err)
	}
	if got3.Seq != 1 || got3.RPC != "rpc" {
		t.Errorf("DecodeEnvelope(extra) = %+v, want Seq=1 RPC=rpc", got3)
	}
}

// TestDecodePayloadRawPassThrough covers Testable Property 2: a raw,
// already-encoded payload placed into an envelope round-trips
// byte-for-byte, without being re-marshaled through its Go type.
func TestDecodePayloadRawPassThrough(t *testing.T) {
	type echo struct {
		A int
		B string
	}

	original := echo{A: 42, B: "hi"}
	b, err := msgpack.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	raw := Raw(b)
	if !equalPayload(raw, msgpack.RawMessage(b)) {
		t.Fatalf("Raw() did not pass the encoded bytes through unchanged")
	}

	var decoded echo
	if err := DecodePayload(raw, &decoded); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if decoded != original {
		t.Errorf("DecodePayload() = %+v, want %+v", decoded, original)
	}
}

// TestEncodePayloadNullDefault covers Testable Property 3: encoding a nil
// value reuses the canonical MessagePack null encoding instead of
// re-marshaling, and it decodes back to the Go zero value.
func TestEncodePayloadNullDefault(t *testing.T) {
	data, err := EncodePayload(nil)
	if err != nil {
		t.Fatalf("EncodePayload(nil) error = %v", err)
	}
	if !bytes.Equal(data, nullPayload) {
		t.Errorf("EncodePayload(nil) = %v, want the canonical null payload %v", []byte(data), []byte(nullPayload))
	}

	var target *int
	if err := DecodePayload(data, &target); err != nil {
		t.Fatalf("DecodePayload(null) error = %v", err)
	}
	if target != nil {
		t.Errorf("DecodePayload(null) = %v, want nil", target)
	}
}

func TestEncapsulatedResponseEncodeMsgpackOmitsTrailingDefaults(t *testing.T) {
	resp := &EncapsulatedResponse{Seq: 3, Type: ResponseMessage}
	b, err := msgpack.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var arr []msgpack.RawMessage
	if err := msgpack.Unmarshal(b, &arr); err != nil {
		t.Fatalf("Unmarshal(as array) error = %v", err)
	}
	if len(arr) != 2 {
		t.Errorf("encoded array length = %d, want 2 (Seq, Data only)", len(arr))
	}
}
