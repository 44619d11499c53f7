// Package target holds compile target lists and the rule used to merge a
// user supplied target into a mandatory baseline.
package target

import (
	"fmt"
	"strings"
)

// Baseline is the minimum target every build gets. es2020 is the first
// edition with native BigInt literals.
const Baseline = "es2020"

type kind uint8

const (
	kindAbsent kind = iota
	kindScalar
	kindList
)

// Value is a target option as written by a user: absent, a single string,
// or a list of strings.
type Value struct {
	kind   kind
	scalar string
	list   []string

	// raw keeps a value of any other shape so it can be handed to the
	// engine untouched.
	raw any
}

func Scalar(s string) Value {
	return Value{kind: kindScalar, scalar: s}
}

func List(items ...string) Value {
	return Value{kind: kindList, list: append([]string{}, items...)}
}

// FromAny decodes a loosely typed config value. Shapes other than a string
// or a list of strings are kept as raw and treated as absent by Merge.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case string:
		return Scalar(t)
	case []string:
		return List(t...)
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return Value{raw: v}
			}
			items = append(items, s)
		}
		return List(items...)
	default:
		return Value{raw: v}
	}
}

func (v Value) IsAbsent() bool { return v.kind == kindAbsent }
func (v Value) IsScalar() bool { return v.kind == kindScalar }
func (v Value) IsList() bool   { return v.kind == kindList }

// Strings returns the targets in order. An absent value has none.
func (v Value) Strings() []string {
	switch v.kind {
	case kindScalar:
		return []string{v.scalar}
	case kindList:
		return append([]string{}, v.list...)
	default:
		return nil
	}
}

// Raw returns the value in its loosely typed form.
func (v Value) Raw() any {
	switch v.kind {
	case kindScalar:
		return v.scalar
	case kindList:
		return v.Strings()
	default:
		return v.raw
	}
}

func (v Value) String() string {
	switch v.kind {
	case kindScalar:
		return v.scalar
	case kindList:
		return "[" + strings.Join(v.list, ", ") + "]"
	case kindAbsent:
		if v.raw != nil {
			return fmt.Sprintf("%v", v.raw)
		}
	}
	return ""
}

// MarshalYAML renders the value the way it would be written by hand.
func (v Value) MarshalYAML() (any, error) {
	return v.Raw(), nil
}

// Merge puts baseline first and appends the user's targets after it.
//
// A scalar equal to baseline (ignoring case) is dropped. Lists are appended
// as given, even if they already contain baseline.
func Merge(baseline string, user Value) []string {
	result := []string{baseline}
	switch user.kind {
	case kindList:
		result = append(result, user.list...)
	case kindScalar:
		if !strings.EqualFold(user.scalar, baseline) {
			result = append(result, user.scalar)
		}
	}
	return result
}

// IsZero reports whether the value was never set.
func (v Value) IsZero() bool {
	return v.kind == kindAbsent && v.raw == nil
}
