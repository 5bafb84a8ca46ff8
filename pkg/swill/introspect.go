package swill

import (
	"context"
	"reflect"
)

// TypeDescriptor is a shallow, wire-friendly description of a handler's
// request or response type, walked via reflection once per registered
// handler (not per call). Slices, maps and pointers describe their single
// nested element positionally; structs describe their fields by name.
type TypeDescriptor struct {
	Kind      string // "scalar", "struct", "slice", "map", "pointer"
	Name      string
	Fields    map[string]TypeDescriptor `msgpack:",omitempty"`
	Arguments []TypeDescriptor          `msgpack:",omitempty"`
}

// HandlerInfo is one entry of the introspection stream: a registered
// handler's name, whether its request and response stream, and its
// request/response shapes.
type HandlerInfo struct {
	Name            string
	RequestStreams  bool
	ResponseStreams bool
	Request         TypeDescriptor
	Response        TypeDescriptor
}

// introspectionHandler registers the built-in swill.introspect RPC: a
// server-stream call with no meaningful request payload, emitting one
// [HandlerInfo] per non-internal registered handler. Clients use it to
// discover the RPC surface without an out-of-band schema file.
func introspectionHandler(d *Dispatcher) *HandlerDescriptor {
	h := UnaryStream("swill.introspect", func(_ context.Context, _ *Call[struct{}], _ *Response) (func(yield func(HandlerInfo) bool), error) {
		handlers := d.Handlers()
		return func(yield func(HandlerInfo) bool) {
			for _, desc := range handlers {
				info := HandlerInfo{
					Name:            desc.Name,
					RequestStreams:  desc.RequestStreams,
					ResponseStreams: desc.ResponseStreams,
					Request:         describeType(desc.RequestType),
					Response:        describeType(desc.ResponseType),
				}
				if !yield(info) {
					return
				}
			}
		}, nil
	})
	h.Internal = true
	return h
}

// describeType walks a reflect.Type through pointers, slices, arrays and
// maps down to the first struct or scalar. A struct's fields are not
// walked further: each is described as a scalar named by its type string,
// so a recursive struct type still terminates.
func describeType(t reflect.Type) TypeDescriptor {
	if t == nil {
		return TypeDescriptor{Kind: "scalar", Name: "null"}
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := describeType(t.Elem())
		return TypeDescriptor{Kind: "pointer", Name: t.String(), Arguments: []TypeDescriptor{elem}}
	case reflect.Slice, reflect.Array:
		elem := describeType(t.Elem())
		return TypeDescriptor{Kind: "slice", Name: t.String(), Arguments: []TypeDescriptor{elem}}
	case reflect.Map:
		key := describeType(t.Key())
		val := describeType(t.Elem())
		return TypeDescriptor{Kind: "map", Name: t.String(), Arguments: []TypeDescriptor{key, val}}
	case reflect.Struct:
		fields := make(map[string]TypeDescriptor, t.NumField())
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fields[f.Name] = TypeDescriptor{Kind: "scalar", Name: f.Type.String()}
		}
		return TypeDescriptor{Kind: "struct", Name: t.String(), Fields: fields}
	default:
		return TypeDescriptor{Kind: "scalar", Name: t.String()}
	}
}
