package validate

import "errors"

// Validatable is implemented by any payload type with its own nested
// validation logic, invoked when a field's value (or one element of an
// `each` field) implements it. Mirrors the __validate__() protocol in
// original_source/server/swill/validators.py.
type Validatable interface {
	Validate() error
}

type fieldRule struct {
	field       string
	get         func(v any) (any, bool) // bool: present (false skips an optional, zero-value field)
	each        bool
	getEach     func(v any) []any
	constraints []Constraint
	optional    bool
}

// Schema is a compiled set of field rules and callback validators for one
// record type, built once at registration time and reused for every
// message of that type. Grounded on the ValidatedStruct/__validators__
// compile-once design in original_source/server/swill/validators.py,
// adapted to Go's lack of runtime type annotations: callers supply typed
// accessor closures instead of field-name reflection.
type Schema struct {
	rules           []fieldRule
	callbacks       []func(v any) error
	returnAllErrors bool
}

// NewSchema constructs an empty [Schema]. When returnAllErrors is false,
// [Schema.Validate] stops at the first failing rule; when true, it
// collects every failure into a single [Error].
func NewSchema(returnAllErrors bool) *Schema {
	return &Schema{returnAllErrors: returnAllErrors}
}

// Field registers constraints against a single scalar (or nested
// Validatable) field. get extracts the field's value from the record; when
// it returns ok=false, the rule fails as a missing required field (use
// OptionalField to skip an absent field instead).
func (s *Schema) Field(name string, get func(v any) (any, bool), constraints ...Constraint) *Schema {
	s.rules = append(s.rules, fieldRule{field: name, get: get, constraints: constraints})
	return s
}

// OptionalField is like Field, but a zero/absent value (ok=false from get)
// is treated as valid rather than checked against constraints.
func (s *Schema) OptionalField(name string, get func(v any) (any, bool), constraints ...Constraint) *Schema {
	s.rules = append(s.rules, fieldRule{field: name, get: get, constraints: constraints, optional: true})
	return s
}

// EachField registers constraints applied to every element of a sequence
// field, tracking the failing index in the resulting [Descriptor].
// Mirrors the `each=True` path of _nested_validator.
func (s *Schema) EachField(name string, getEach func(v any) []any, constraints ...Constraint) *Schema {
	s.rules = append(s.rules, fieldRule{field: name, each: true, getEach: getEach, constraints: constraints})
	return s
}

// Callback registers a user-defined, whole-record validator, run after all
// field rules (matching the `@validator` decorator in the Python
// original, which always runs after annotation-derived constraints).
func (s *Schema) Callback(fn func(v any) error) *Schema {
	s.callbacks = append(s.callbacks, fn)
	return s
}

// Validate runs every rule and callback against v, returning nil if all
// pass, or an *[Error] aggregating every failure (or just the first, per
// the schema's returnAllErrors setting).
func (s *Schema) Validate(v any) error {
	var descriptors []Descriptor

	addFail := func(field string, index *int, err error) bool {
		d := Descriptor{Field: field, Index: index, Message: err.Error()}
		var inner *Error
		if errors.As(err, &inner) {
			d.Nested = inner.Fields
		}
		descriptors = append(descriptors, d)
		return !s.returnAllErrors
	}

	for _, r := range s.rules {
		if r.each {
			items := r.getEach(v)
			for i, item := range items {
				if err := checkValue(item, r.constraints); err != nil {
					idx := i
					if addFail(r.field, &idx, err) {
						return &Error{Fields: descriptors}
					}
				}
			}
			continue
		}

		value, ok := r.get(v)
		if !ok {
			if r.optional {
				continue
			}
			if addFail(r.field, nil, errors.New("missing required field")) {
				return &Error{Fields: descriptors}
			}
			continue
		}

		if err := checkValue(value, r.constraints); err != nil {
			if addFail(r.field, nil, err) {
				return &Error{Fields: descriptors}
			}
		}
	}

	for _, cb := range s.callbacks {
		if err := cb(v); err != nil {
			if addFail("", nil, err) {
				return &Error{Fields: descriptors}
			}
		}
	}

	if len(descriptors) > 0 {
		return &Error{Fields: descriptors}
	}
	return nil
}

// checkValue runs every constraint against value, recursing into a
// Validatable implementation first (matching _nested_validator's
// precedence: a nested record's own __validate__ runs, then any
// additionally attached constraints).
func checkValue(value any, constraints []Constraint) error {
	if nested, ok := value.(Validatable); ok {
		if err := nested.Validate(); err != nil {
			return err
		}
	}
	for _, c := range constraints {
		if err := c(value); err != nil {
			return err
		}
	}
	return nil
}
