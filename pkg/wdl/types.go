// Package wdl provides the WDL document model consumed by the compiler:
// the type system, the AST produced by the parser, literal values, and a
// printer that re-emits ASTs as source text.
package wdl

import "strings"

// Type is a WDL type. Types are immutable values; compare with TypesEqual.
type Type interface {
	String() string
	typeNode()
}

// Primitive is a non-compound WDL type.
type Primitive string

const (
	TypeBoolean Primitive = "Boolean"
	TypeInt     Primitive = "Int"
	TypeFloat   Primitive = "Float"
	TypeString  Primitive = "String"
	TypeFile    Primitive = "File"
	TypeObject  Primitive = "Object"
)

func (p Primitive) String() string { return string(p) }
func (p Primitive) typeNode()      {}

// Optional is T?. The parser and MakeOptional guarantee Inner is never
// itself an Optional.
type Optional struct {
	Inner Type
}

func (o Optional) String() string { return o.Inner.String() + "?" }
func (o Optional) typeNode()      {}

// Array is Array[T], with an optional non-empty marker (Array[T]+).
type Array struct {
	Item     Type
	NonEmpty bool
}

func (a Array) String() string {
	s := "Array[" + a.Item.String() + "]"
	if a.NonEmpty {
		s += "+"
	}
	return s
}
func (a Array) typeNode() {}

// Map is Map[K, V].
type Map struct {
	Key   Type
	Value Type
}

func (m Map) String() string { return "Map[" + m.Key.String() + ", " + m.Value.String() + "]" }
func (m Map) typeNode()      {}

// Pair is Pair[L, R].
type Pair struct {
	Left  Type
	Right Type
}

func (p Pair) String() string { return "Pair[" + p.Left.String() + ", " + p.Right.String() + "]" }
func (p Pair) typeNode()      {}

// IsOptional reports whether t is T?.
func IsOptional(t Type) bool {
	_, ok := t.(Optional)
	return ok
}

// MakeOptional lifts t to T?. Already-optional types are returned
// unchanged; a double optional is never produced.
func MakeOptional(t Type) Type {
	if IsOptional(t) {
		return t
	}
	return Optional{Inner: t}
}

// Unoptional strips one level of optionality, if present.
func Unoptional(t Type) Type {
	if o, ok := t.(Optional); ok {
		return o.Inner
	}
	return t
}

// MakeArray lifts t to Array[T].
func MakeArray(t Type) Type {
	return Array{Item: t}
}

// TypesEqual compares two types structurally. The non-empty marker on
// arrays is significant.
func TypesEqual(a, b Type) bool {
	return a.String() == b.String()
}

// IsNativeDX reports whether values of t can cross the platform boundary
// directly: primitives other than Object, optionals of those, and a
// single level of array over those. Nested arrays, maps, pairs and
// objects require the collect path.
func IsNativeDX(t Type) bool {
	switch v := t.(type) {
	case Primitive:
		return v != TypeObject
	case Optional:
		p, ok := v.Inner.(Primitive)
		return ok && p != TypeObject
	case Array:
		return IsNativeDX(v.Item) && !isCompound(v.Item)
	default:
		return false
	}
}

func isCompound(t Type) bool {
	switch t.(type) {
	case Array, Map, Pair:
		return true
	}
	return false
}

// ParseTypeString parses a WDL type written as source text, e.g.
// "Array[Int]+", "File?", "Map[String, Int]". It runs the same type
// production (parseTypeTokens) the parser uses for declarations.
func ParseTypeString(s string) (Type, bool) {
	s = strings.TrimSpace(s)
	lx := newLexer(s)
	t, err := parseTypeTokens(lx)
	if err != nil || lx.peek().kind != tokEOF {
		return nil, false
	}
	return t, true
}
