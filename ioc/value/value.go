// Package value implements the closed Value algebra (C1): a recursive sum of
// number, string, boolean, null, array, and object. No other inhabitants are
// legal — functions, opaque handles, and cyclic values are rejected at the
// boundary by Validate / FromInterface.
//
// Grounded on the teacher's tagged-union-via-Kind-field style (see
// core/ir/types.go's ElementKind/ContentPart, runtime/planner/ir.go's
// StatementKind/StatementIR) generalized from a shell-command AST to a data
// value algebra.
package value

import (
	"fmt"
	"sort"

	"github.com/ioc-lang/ioc/internal/invariant"
)

// Kind discriminates the inhabitants of the Value sum.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBoolean
	KindNull
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindNull:
		return "null"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a closed, serializable value: exactly one of its Kind-selected
// fields is meaningful.
type Value struct {
	Kind    Kind
	Number  float64
	Str     string
	Boolean bool
	Array   []Value
	Object  map[string]Value
}

func Number(n float64) Value            { return Value{Kind: KindNumber, Number: n} }
func String(s string) Value             { return Value{Kind: KindString, Str: s} }
func Bool(b bool) Value                  { return Value{Kind: KindBoolean, Boolean: b} }
func Null() Value                       { return Value{Kind: KindNull} }
func NewArray(items ...Value) Value     { return Value{Kind: KindArray, Array: items} }
func NewObject(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{Kind: KindObject, Object: fields}
}

// ForbiddenPropertyNames are the property segments invariant 5 bans anywhere
// a Property path dereferences, and that Validate additionally bans as
// Value object keys (defense in depth against prototype-pollution-style
// payloads smuggled in as Constant values).
var ForbiddenPropertyNames = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
	"valueOf":     true,
	"toString":    true,
}

// Validate walks v and fails with a descriptive error when it encounters a
// forbidden object key. Go's Value type cannot itself represent callables or
// cycles (its Array/Object fields hold Value by value), so those checks live
// in FromInterface, which is the actual boundary where host-language data
// becomes a Value.
func Validate(v Value) error {
	return validatePath(v, "$")
}

func validatePath(v Value, path string) error {
	switch v.Kind {
	case KindArray:
		for i, elem := range v.Array {
			if err := validatePath(elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case KindObject:
		for key, elem := range v.Object {
			if ForbiddenPropertyNames[key] {
				return fmt.Errorf("forbidden property name %q at %s", key, path)
			}
			if err := validatePath(elem, fmt.Sprintf("%s.%s", path, key)); err != nil {
				return err
			}
		}
	}
	return nil
}

// FromInterface converts a host-language value (as produced by
// encoding/json.Unmarshal into interface{}, or constructed programmatically)
// into a Value, rejecting anything outside the closed algebra: functions,
// channels, unsupported numeric/complex kinds, circular maps/slices, and
// forbidden property names.
func FromInterface(raw interface{}) (Value, error) {
	seen := map[interface{}]bool{}
	return fromInterface(raw, seen, "$")
}

func fromInterface(raw interface{}, seen map[interface{}]bool, path string) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(v), nil
	case float64:
		return Number(v), nil
	case int:
		return Number(float64(v)), nil
	case string:
		return String(v), nil
	case []interface{}:
		if seen[anyKey(v)] {
			return Value{}, fmt.Errorf("circular array reference at %s", path)
		}
		seen[anyKey(v)] = true
		out := make([]Value, 0, len(v))
		for i, elem := range v {
			cv, err := fromInterface(elem, seen, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Value{}, err
			}
			out = append(out, cv)
		}
		delete(seen, anyKey(v))
		return NewArray(out...), nil
	case map[string]interface{}:
		if seen[anyKey(v)] {
			return Value{}, fmt.Errorf("circular object reference at %s", path)
		}
		seen[anyKey(v)] = true
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := map[string]Value{}
		for _, k := range keys {
			if ForbiddenPropertyNames[k] {
				return Value{}, fmt.Errorf("forbidden property name %q at %s", k, path)
			}
			cv, err := fromInterface(v[k], seen, fmt.Sprintf("%s.%s", path, k))
			if err != nil {
				return Value{}, err
			}
			out[k] = cv
		}
		delete(seen, anyKey(v))
		return NewObject(out), nil
	default:
		return Value{}, fmt.Errorf("unsafe value at %s: unsupported type %T (callables/handles are not legal Values)", path, raw)
	}
}

// anyKey uses the map/slice header's identity as a cycle-detection key. Only
// maps and slices are reference types among JSON-decoded inputs, so this is
// sufficient to catch self-referential structures built programmatically.
func anyKey(v interface{}) interface{} {
	invariant.NotNil(v, "v")
	return fmt.Sprintf("%p", v)
}

// Equal reports whether a and b are structurally equal (used by CSE for
// Constant-node deduplication and by the optimizer's reorder correctness
// guard).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.Number == b.Number
	case KindString:
		return a.Str == b.Str
	case KindBoolean:
		return a.Boolean == b.Boolean
	case KindNull:
		return true
	case KindArray:
		if len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !Equal(a.Array[i], b.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.Object) != len(b.Object) {
			return false
		}
		for k, av := range a.Object {
			bv, ok := b.Object[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Stringify renders v the way Sort-without-a-key compares elements: a
// deterministic, lexicographic-friendly string form (§4.6's documented
// numeric semantics choice — not JSON, just a total order key).
func Stringify(v Value) string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBoolean:
		if v.Boolean {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Number)
	case KindString:
		return v.Str
	case KindArray:
		parts := make([]string, len(v.Array))
		for i, e := range v.Array {
			parts[i] = Stringify(e)
		}
		return "[" + joinStrings(parts, ",") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.Object))
		for k := range v.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + Stringify(v.Object[k])
		}
		return "{" + joinStrings(parts, ",") + "}"
	default:
		return ""
	}
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func formatNumber(n float64) string {
	return fmt.Sprintf("%g", n)
}
