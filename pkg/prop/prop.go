// Package prop provides the tagged property value type and timestamp
// primitives shared by every other chronoshard package: every node,
// edge and temporal property timeline is built on Prop and Timestamp.
//
// Conversions follow the same convention as pkg/convert: every
// IntoXxx-style accessor returns (value, ok bool) rather than panicking
// or silently coercing, and is total only on its matching variant —
// asking an I64 for IntoU64 returns (0, false), it never reinterprets
// the bits.
package prop

import "fmt"

// Kind tags the concrete type held by a Prop.
type Kind uint8

const (
	KindBool Kind = iota
	KindI32
	KindI64
	KindU32
	KindU64
	KindF32
	KindF64
	KindStr
	KindPersistentGraph
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindI32:
		return "I32"
	case KindI64:
		return "I64"
	case KindU32:
		return "U32"
	case KindU64:
		return "U64"
	case KindF32:
		return "F32"
	case KindF64:
		return "F64"
	case KindStr:
		return "Str"
	case KindPersistentGraph:
		return "PersistentGraph"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	default:
		return "Unknown"
	}
}

// Prop is a tagged sum over chronoshard's scalar/container value types.
// Equality is structural: two Props are equal only if their Kind and
// value agree exactly. Numeric variants never coerce — U64(1) != I64(1)
// because their Kind differs, even though the bit patterns agree.
//
// Prop is a value type; zero value is Bool(false). Use the constructor
// functions (Bool, I32, I64, ...) rather than constructing a Prop
// literal directly.
type Prop struct {
	kind Kind
	b    bool
	i64  int64
	u64  uint64
	f64  float64
	s    string
	list []Prop
	m    map[string]Prop
	pg   any // opaque PersistentGraph payload; chronoshard never interprets it
}

func Bool(v bool) Prop           { return Prop{kind: KindBool, b: v} }
func I32(v int32) Prop           { return Prop{kind: KindI32, i64: int64(v)} }
func I64(v int64) Prop           { return Prop{kind: KindI64, i64: v} }
func U32(v uint32) Prop          { return Prop{kind: KindU32, u64: uint64(v)} }
func U64(v uint64) Prop          { return Prop{kind: KindU64, u64: v} }
func F32(v float32) Prop         { return Prop{kind: KindF32, f64: float64(v)} }
func F64(v float64) Prop         { return Prop{kind: KindF64, f64: v} }
func Str(v string) Prop          { return Prop{kind: KindStr, s: v} }
func PersistentGraph(v any) Prop { return Prop{kind: KindPersistentGraph, pg: v} }

// List constructs a List-kind Prop. The slice is copied so later
// mutation of items by the caller does not reach back into the Prop.
func List(items []Prop) Prop {
	out := make([]Prop, len(items))
	copy(out, items)
	return Prop{kind: KindList, list: out}
}

// Map constructs a Map-kind Prop, copying the input map.
func Map(entries map[string]Prop) Prop {
	out := make(map[string]Prop, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return Prop{kind: KindMap, m: out}
}

// Kind reports the tag of this Prop.
func (p Prop) Kind() Kind { return p.kind }

// Equal reports structural equality: same Kind and same value, recursing
// into List and Map containers. PersistentGraph values compare equal
// only to themselves via the opaque payload's == operator when
// comparable, otherwise they compare unequal (a PersistentGraph payload
// is expected to be a handle, not a deep value).
func (p Prop) Equal(other Prop) bool {
	if p.kind != other.kind {
		return false
	}
	switch p.kind {
	case KindBool:
		return p.b == other.b
	case KindI32, KindI64:
		return p.i64 == other.i64
	case KindU32, KindU64:
		return p.u64 == other.u64
	case KindF32, KindF64:
		return p.f64 == other.f64
	case KindStr:
		return p.s == other.s
	case KindPersistentGraph:
		return isComparableEqual(p.pg, other.pg)
	case KindList:
		if len(p.list) != len(other.list) {
			return false
		}
		for i := range p.list {
			if !p.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(p.m) != len(other.m) {
			return false
		}
		for k, v := range p.m {
			ov, ok := other.m[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isComparableEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// String renders a human-readable form, used by logging and test
// failure messages; it is not a serialization format.
func (p Prop) String() string {
	switch p.kind {
	case KindBool:
		return fmt.Sprintf("%v", p.b)
	case KindI32, KindI64:
		return fmt.Sprintf("%d", p.i64)
	case KindU32, KindU64:
		return fmt.Sprintf("%d", p.u64)
	case KindF32, KindF64:
		return fmt.Sprintf("%g", p.f64)
	case KindStr:
		return p.s
	case KindPersistentGraph:
		return fmt.Sprintf("PersistentGraph(%v)", p.pg)
	case KindList:
		return fmt.Sprintf("%v", p.list)
	case KindMap:
		return fmt.Sprintf("%v", p.m)
	default:
		return "<invalid prop>"
	}
}

// IntoBool returns (v, true) iff Kind() == KindBool.
func (p Prop) IntoBool() (bool, bool) {
	if p.kind != KindBool {
		return false, false
	}
	return p.b, true
}

// IntoI32 returns (v, true) iff Kind() == KindI32.
func (p Prop) IntoI32() (int32, bool) {
	if p.kind != KindI32 {
		return 0, false
	}
	return int32(p.i64), true
}

// IntoI64 returns (v, true) iff Kind() == KindI64.
func (p Prop) IntoI64() (int64, bool) {
	if p.kind != KindI64 {
		return 0, false
	}
	return p.i64, true
}

// IntoU32 returns (v, true) iff Kind() == KindU32.
func (p Prop) IntoU32() (uint32, bool) {
	if p.kind != KindU32 {
		return 0, false
	}
	return uint32(p.u64), true
}

// IntoU64 returns (v, true) iff Kind() == KindU64.
func (p Prop) IntoU64() (uint64, bool) {
	if p.kind != KindU64 {
		return 0, false
	}
	return p.u64, true
}

// IntoF32 returns (v, true) iff Kind() == KindF32.
func (p Prop) IntoF32() (float32, bool) {
	if p.kind != KindF32 {
		return 0, false
	}
	return float32(p.f64), true
}

// IntoF64 returns (v, true) iff Kind() == KindF64.
func (p Prop) IntoF64() (float64, bool) {
	if p.kind != KindF64 {
		return 0, false
	}
	return p.f64, true
}

// IntoStr returns (v, true) iff Kind() == KindStr.
func (p Prop) IntoStr() (string, bool) {
	if p.kind != KindStr {
		return "", false
	}
	return p.s, true
}

// IntoList returns (v, true) iff Kind() == KindList. The returned slice
// is a copy; mutating it does not affect the Prop.
func (p Prop) IntoList() ([]Prop, bool) {
	if p.kind != KindList {
		return nil, false
	}
	out := make([]Prop, len(p.list))
	copy(out, p.list)
	return out, true
}

// IntoMap returns (v, true) iff Kind() == KindMap. The returned map is a
// copy; mutating it does not affect the Prop.
func (p Prop) IntoMap() (map[string]Prop, bool) {
	if p.kind != KindMap {
		return nil, false
	}
	out := make(map[string]Prop, len(p.m))
	for k, v := range p.m {
		out[k] = v
	}
	return out, true
}
