package validate

import "testing"

func TestConstraints(t *testing.T) {
	tests := []struct {
		name    string
		c       Constraint
		value   any
		wantErr bool
	}{
		{"gt pass", Gt(5), 6, false},
		{"gt fail", Gt(5), 5, true},
		{"ge pass equal", Ge(5), 5, false},
		{"lt pass", Lt(5), 4, false},
		{"lt fail equal", Lt(5), 5, true},
		{"le pass equal", Le(5), 5, false},
		{"multiple_of pass", MultipleOf(3), 9, false},
		{"multiple_of fail", MultipleOf(3), 10, true},
		{"len pass", Len(1, 5), "abc", false},
		{"len too short", Len(2, 5), "a", true},
		{"len too long", Len(1, 3), "abcd", true},
		{"regex pass", Regex("^[a-z]+$"), "abc", false},
		{"regex fail", Regex("^[a-z]+$"), "ABC", true},
		{"predicate pass", Predicate("even", func(v any) bool { return v.(int)%2 == 0 }), 4, false},
		{"predicate fail", Predicate("even", func(v any) bool { return v.(int)%2 == 0 }), 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("got err %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type person struct {
	Name string
	Age  int
	Tags []string
}

func newPersonSchema(returnAll bool) *Schema {
	return NewSchema(returnAll).
		Field("name", func(v any) (any, bool) { return v.(person).Name, true }, Len(1, 0)).
		Field("age", func(v any) (any, bool) { return v.(person).Age, true }, Ge(0), Lt(150)).
		EachField("tags", func(v any) []any {
			tags := v.(person).Tags
			out := make([]any, len(tags))
			for i, t := range tags {
				out[i] = t
			}
			return out
		}, Len(1, 0))
}

func TestSchemaValidateFirstFailure(t *testing.T) {
	s := newPersonSchema(false)

	if err := s.Validate(person{Name: "a", Age: 30}); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}

	err := s.Validate(person{Name: "", Age: 200})
	if err == nil {
		t.Fatal("expected an error for invalid record")
	}
	ve, ok := err.(*Error)
	if !ok {
		t.Fatalf("got %T, want *Error", err)
	}
	if len(ve.Fields) != 1 {
		t.Errorf("got %d field errors, want 1 (first-failure mode)", len(ve.Fields))
	}
}

func TestSchemaValidateReturnAllErrors(t *testing.T) {
	s := newPersonSchema(true)

	err := s.Validate(person{Name: "", Age: 200})
	if err == nil {
		t.Fatal("expected an error for invalid record")
	}
	ve := err.(*Error)
	if len(ve.Fields) != 2 {
		t.Errorf("got %d field errors, want 2 (return-all-errors mode)", len(ve.Fields))
	}
}

func TestSchemaEachFieldTracksIndex(t *testing.T) {
	s := newPersonSchema(true)

	err := s.Validate(person{Name: "a", Age: 10, Tags: []string{"ok", ""}})
	if err == nil {
		t.Fatal("expected an error for empty tag")
	}
	ve := err.(*Error)
	if len(ve.Fields) != 1 {
		t.Fatalf("got %d field errors, want 1", len(ve.Fields))
	}
	if ve.Fields[0].Index == nil || *ve.Fields[0].Index != 1 {
		t.Errorf("got index %v, want 1", ve.Fields[0].Index)
	}
}
