// Package variant models the D-Bus value type system as a closed set of Go
// types. Every value read off the bus is decoded into one of these cases
// before it is converted to JSON.
package variant

import "strings"

// Value is a single D-Bus value. The set of implementations is closed: only
// the types declared in this package satisfy it.
type Value interface {
	// Signature returns the D-Bus type signature of the value.
	Signature() string
	isValue()
}

type (
	Byte          uint8
	Bool          bool
	Int16         int16
	Uint16        uint16
	Int32         int32
	Uint32        uint32
	Int64         int64
	Uint64        uint64
	Double        float64
	String        string
	ObjectPath    string
	TypeSignature string
	// UnixFD is the descriptor number of a transferred file handle. It is
	// informational only once it leaves the receiving process.
	UnixFD int32
)

// Array is a homogeneous, ordered sequence. ElemSignature is kept separately
// so empty arrays still report a complete signature.
type Array struct {
	ElemSignature string
	Items         []Value
}

// Struct is an ordered heterogeneous tuple. D-Bus structs carry no field names.
type Struct struct {
	Fields []Value
}

// Entry is one key/value pair of a Dict.
type Entry struct {
	Key   Value
	Value Value
}

// Dict is a key/value mapping in entry order.
type Dict struct {
	KeySignature   string
	ValueSignature string
	Entries        []Entry
}

// Variant boxes a dynamically typed value.
type Variant struct {
	Value Value
}

func (Byte) Signature() string          { return "y" }
func (Bool) Signature() string          { return "b" }
func (Int16) Signature() string         { return "n" }
func (Uint16) Signature() string        { return "q" }
func (Int32) Signature() string         { return "i" }
func (Uint32) Signature() string        { return "u" }
func (Int64) Signature() string         { return "x" }
func (Uint64) Signature() string        { return "t" }
func (Double) Signature() string        { return "d" }
func (String) Signature() string        { return "s" }
func (ObjectPath) Signature() string    { return "o" }
func (TypeSignature) Signature() string { return "g" }
func (UnixFD) Signature() string        { return "h" }
func (Variant) Signature() string       { return "v" }

func (a Array) Signature() string {
	elem := a.ElemSignature
	if elem == "" && len(a.Items) > 0 && a.Items[0] != nil {
		elem = a.Items[0].Signature()
	}
	if elem == "" {
		elem = "v"
	}
	return "a" + elem
}

func (s Struct) Signature() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, field := range s.Fields {
		if field != nil {
			b.WriteString(field.Signature())
		}
	}
	b.WriteByte(')')
	return b.String()
}

func (d Dict) Signature() string {
	key, value := d.KeySignature, d.ValueSignature
	if len(d.Entries) > 0 {
		first := d.Entries[0]
		if key == "" && first.Key != nil {
			key = first.Key.Signature()
		}
		if value == "" && first.Value != nil {
			value = first.Value.Signature()
		}
	}
	if key == "" {
		key = "s"
	}
	if value == "" {
		value = "v"
	}
	return "a{" + key + value + "}"
}

func (Byte) isValue()          {}
func (Bool) isValue()          {}
func (Int16) isValue()         {}
func (Uint16) isValue()        {}
func (Int32) isValue()         {}
func (Uint32) isValue()        {}
func (Int64) isValue()         {}
func (Uint64) isValue()        {}
func (Double) isValue()        {}
func (String) isValue()        {}
func (ObjectPath) isValue()    {}
func (TypeSignature) isValue() {}
func (UnixFD) isValue()        {}
func (Array) isValue()         {}
func (Struct) isValue()        {}
func (Dict) isValue()          {}
func (Variant) isValue()       {}

// IsBasic reports whether v is one of the D-Bus basic types, the only types
// allowed as dict keys.
func IsBasic(v Value) bool {
	switch v.(type) {
	case Byte, Bool, Int16, Uint16, Int32, Uint32, Int64, Uint64, Double,
		String, ObjectPath, TypeSignature, UnixFD:
		return true
	default:
		return false
	}
}
