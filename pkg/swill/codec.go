// Package swill implements the RPC multiplexer that runs on top of a single
// WebSocket connection: framing, sequence-keyed call demultiplexing, the
// request/response lifecycle (including leading/trailing metadata and
// streaming), handler dispatch, and structured error surfacing.
package swill

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// nullPayload is the MessagePack encoding of null (0xc0), reused whenever an
// [EncapsulatedResponse]'s Data is absent, instead of re-encoding it.
var nullPayload = msgpack.RawMessage{0xc0}

// Raw wraps an already-encoded MessagePack payload so it can be placed
// directly into an envelope's Data field without being re-encoded.
func Raw(b []byte) msgpack.RawMessage {
	if b == nil {
		return nullPayload
	}
	return msgpack.RawMessage(b)
}

// Validatable is implemented by decoded payload types that carry their own
// post-deserialization constraint checks (see package validate).
type Validatable interface {
	Validate() error
}

// DecodeEnvelope decodes a single inbound WebSocket binary message into an
// [EncapsulatedRequest].
func DecodeEnvelope(b []byte) (*EncapsulatedRequest, error) {
	req := &EncapsulatedRequest{}
	if err := msgpack.Unmarshal(b, req); err != nil {
		return nil, fmt.Errorf("failed to decode request envelope: %w", err)
	}
	return req, nil
}

// DecodePayload decodes an envelope's opaque Data into target, and - if
// target implements [Validatable] - runs its constraint validator.
func DecodePayload(raw msgpack.RawMessage, target any) error {
	if err := msgpack.Unmarshal(raw, target); err != nil {
		return &DeserializationError{Err: err}
	}

	if v, ok := target.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// EncodePayload encodes a value for placement into an envelope's Data
// field. A nil value encodes to the reusable null sentinel.
func EncodePayload(v any) (msgpack.RawMessage, error) {
	if v == nil {
		return nullPayload, nil
	}

	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	return msgpack.RawMessage(b), nil
}

// EncodeEnvelope encodes an [EncapsulatedResponse] as a single outbound
// WebSocket binary message.
func EncodeEnvelope(r *EncapsulatedResponse) ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response envelope: %w", err)
	}
	return b, nil
}

// EncodeMsgpack implements [msgpack.CustomEncoder]. EncapsulatedRequest is
// encoded as a fixed-position array, with defaulted tail fields omitted.
func (r *EncapsulatedRequest) EncodeMsgpack(enc *msgpack.Encoder) error {
	n := 5
	if r.Metadata == nil {
		n--
		if r.Type == RequestMessage {
			n--
			if r.RPC == "" {
				n--
			}
		}
	}

	if err := enc.EncodeArrayLen(n); err != nil {
		return err
	}

	if err := enc.EncodeUint64(r.Seq); err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	if r.Data == nil {
		if err := enc.Encode(nullPayload); err != nil {
			return err
		}
	} else if err := enc.Encode(r.Data); err != nil {
		return err
	}
	if n == 2 {
		return nil
	}

	if err := enc.EncodeString(r.RPC); err != nil {
		return err
	}
	if n == 3 {
		return nil
	}

	if err := enc.EncodeUint8(uint8(r.Type)); err != nil {
		return err
	}
	if n == 4 {
		return nil
	}

	return enc.Encode(r.Metadata)
}

// DecodeMsgpack implements [msgpack.CustomDecoder]. Array elements beyond
// what was encoded default to their zero value.
func (r *EncapsulatedRequest) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}

	*r = EncapsulatedRequest{}

	for i := range n {
		switch i {
		case 0:
			if r.Seq, err = dec.DecodeUint64(); err != nil {
				return err
			}
		case 1:
			if err = dec.Decode(&r.Data); err != nil {
				return err
			}
		case 2:
			if r.RPC, err = dec.DecodeString(); err != nil {
				return err
			}
		case 3:
			t, terr := dec.DecodeUint8()
			if terr != nil {
				return terr
			}
			r.Type = RequestType(t)
		case 4:
			if err = dec.Decode(&r.Metadata); err != nil {
				return err
			}
		default:
			if err = dec.Skip(); err != nil {
				return err
			}
		}
	}

	return nil
}

// EncodeMsgpack implements [msgpack.CustomEncoder]. EncapsulatedResponse is
// encoded as a fixed-position array, with defaulted tail fields omitted.
func (r *EncapsulatedResponse) EncodeMsgpack(enc *msgpack.Encoder) error {
	n := 5
	if r.TrailingMetadata == nil {
		n--
		if r.LeadingMetadata == nil {
			n--
			if r.Type == ResponseMessage {
				n--
			}
		}
	}

	if err := enc.EncodeArrayLen(n); err != nil {
		return err
	}

	if err := enc.EncodeUint64(r.Seq); err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	if r.Data == nil {
		if err := enc.Encode(nullPayload); err != nil {
			return err
		}
	} else if err := enc.Encode(r.Data); err != nil {
		return err
	}
	if n == 2 {
		return nil
	}

	if err := enc.EncodeUint8(uint8(r.Type)); err != nil {
		return err
	}
	if n == 3 {
		return nil
	}

	if err := enc.Encode(r.LeadingMetadata); err != nil {
		return err
	}
	if n == 4 {
		return nil
	}

	return enc.Encode(r.TrailingMetadata)
}

// DecodeMsgpack implements [msgpack.CustomDecoder].
func (r *EncapsulatedResponse) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}

	*r = EncapsulatedResponse{}

	for i := range n {
		switch i {
		case 0:
			if r.Seq, err = dec.DecodeUint64(); err != nil {
				return err
			}
		case 1:
			if err = dec.Decode(&r.Data); err != nil {
				return err
			}
		case 2:
			t, terr := dec.DecodeUint8()
			if terr != nil {
				return terr
			}
			r.Type = ResponseType(t)
		case 3:
			if err = dec.Decode(&r.LeadingMetadata); err != nil {
				return err
			}
		case 4:
			if err = dec.Decode(&r.TrailingMetadata); err != nil {
				return err
			}
		default:
			if err = dec.Skip(); err != nil {
				return err
			}
		}
	}

	return nil
}

// equalPayload reports whether two raw MessagePack payloads are
// byte-for-byte identical. Used by tests that check pass-through behavior.
func equalPayload(a, b msgpack.RawMessage) bool {
	return bytes.Equal(a, b)
}
