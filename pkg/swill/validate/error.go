package validate

import (
	"strconv"
	"strings"
)

// Descriptor describes one failed constraint, attributed to a field (and,
// for `each`-validated sequences, optionally an index into it). When the
// failure is itself an *[Error] (a nested record's own validation), its
// descriptors are carried in Nested and its text in Message, mirroring the
// Python implementation's ComplexValidationError wrapping.
type Descriptor struct {
	Field   string
	Index   *int
	Message string
	Nested  []Descriptor
}

// Error aggregates every failed [Descriptor] produced by one call to
// [Schema.Validate]. It satisfies the error interface so it can travel
// through normal Go error handling, and is what pkg/swill's
// ValidationError type alias refers to.
type Error struct {
	Fields []Descriptor
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, d := range e.Fields {
		parts = append(parts, describe(d))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func describe(d Descriptor) string {
	if d.Index != nil {
		return d.Field + "[" + strconv.Itoa(*d.Index) + "]: " + d.Message
	}
	return d.Field + ": " + d.Message
}
