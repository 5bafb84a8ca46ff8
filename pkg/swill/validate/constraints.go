// Package validate provides declarative, composable value constraints and
// user-defined callback checks that run after MessagePack decoding.
// Constraints are compiled once, at schema-construction time, into a flat
// list of closures; validating a record walks that list with no reflection
// on the hot path. Grounded on
// _examples/original_source/server/swill/validators.py.
package validate

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
)

// Constraint checks a single value, returning a descriptive error on
// failure.
type Constraint func(value any) error

// Gt requires value > n.
func Gt(n float64) Constraint {
	return func(value any) error {
		if toFloat(value) <= n {
			return fmt.Errorf("must be greater than %v", n)
		}
		return nil
	}
}

// Ge requires value >= n.
func Ge(n float64) Constraint {
	return func(value any) error {
		if toFloat(value) < n {
			return fmt.Errorf("must be greater than or equal to %v", n)
		}
		return nil
	}
}

// Lt requires value < n.
func Lt(n float64) Constraint {
	return func(value any) error {
		if toFloat(value) >= n {
			return fmt.Errorf("must be less than %v", n)
		}
		return nil
	}
}

// Le requires value <= n.
func Le(n float64) Constraint {
	return func(value any) error {
		if toFloat(value) > n {
			return fmt.Errorf("must be less than or equal to %v", n)
		}
		return nil
	}
}

// MultipleOf requires value to be an integer multiple of n.
func MultipleOf(n float64) Constraint {
	return func(value any) error {
		v := toFloat(value)
		if n == 0 || math.Mod(v, n) != 0 {
			return fmt.Errorf("must be a multiple of %v", n)
		}
		return nil
	}
}

// Len requires the value's length (string, slice, map) to satisfy
// minInclusive <= len(value) < maxExclusive. A maxExclusive of 0 means
// unbounded.
func Len(minInclusive, maxExclusive int) Constraint {
	return func(value any) error {
		n := reflect.ValueOf(value).Len()
		if n < minInclusive {
			return fmt.Errorf("length less than %d", minInclusive)
		}
		if maxExclusive > 0 && n >= maxExclusive {
			return fmt.Errorf("length greater than or equal to %d", maxExclusive)
		}
		return nil
	}
}

// Timezone requires a time.Location-carrying value (anything exposing a
// String() method naming its zone) to match the given IANA zone name.
func Timezone(tz string) Constraint {
	return func(value any) error {
		type zoner interface{ String() string }
		z, ok := value.(zoner)
		if !ok {
			return fmt.Errorf("value has no timezone")
		}
		if z.String() != tz {
			return fmt.Errorf("timezone %q does not match required %q", z.String(), tz)
		}
		return nil
	}
}

// Regex requires a string value to match pattern.
func Regex(pattern string) Constraint {
	re := regexp.MustCompile(pattern)
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("regex constraint applied to non-string value")
		}
		if !re.MatchString(s) {
			return fmt.Errorf("does not match pattern %q", pattern)
		}
		return nil
	}
}

// Predicate wraps an arbitrary named boolean check.
func Predicate(name string, fn func(any) bool) Constraint {
	return func(value any) error {
		if !fn(value) {
			return fmt.Errorf("failed predicate %q", name)
		}
		return nil
	}
}

func toFloat(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		rv := reflect.ValueOf(value)
		if rv.CanFloat() {
			return rv.Float()
		}
		if rv.CanInt() {
			return float64(rv.Int())
		}
		if rv.CanUint() {
			return float64(rv.Uint())
		}
		return 0
	}
}
