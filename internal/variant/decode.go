package variant

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

// ErrNilValue is returned when a body or container holds a nil interface,
// which no D-Bus type decodes to.
var ErrNilValue = errors.New("nil value")

// UnsupportedTypeError is returned when a Go value has no D-Bus equivalent.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported Go type %s", e.Type)
}

var (
	variantType    = reflect.TypeOf(dbus.Variant{})
	objectPathType = reflect.TypeOf(dbus.ObjectPath(""))
	signatureType  = reflect.TypeOf(dbus.Signature{})
	unixFDType     = reflect.TypeOf(dbus.UnixFD(0))
	unixFDIdxType  = reflect.TypeOf(dbus.UnixFDIndex(0))
	interfacesType = reflect.TypeOf([]interface{}{})
)

// genericStruct stands in for a struct whose field types are unknown.
const genericStruct = "r"

// FromBody decodes the positional arguments of a message into a single
// synthetic struct, so a multi-argument signal is one value.
func FromBody(body []interface{}) (Struct, error) {
	fields := make([]Value, len(body))
	for i, arg := range body {
		value, err := FromGo(arg)
		if err != nil {
			return Struct{}, fmt.Errorf("argument %d: %w", i, err)
		}
		fields[i] = value
	}
	return Struct{Fields: fields}, nil
}

// FromGo decodes a value in the representation godbus uses for message
// bodies. Structs arrive as []interface{}, arrays as typed slices, dicts as
// Go maps and variants as dbus.Variant.
func FromGo(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, ErrNilValue
	case Value:
		return x, nil
	case byte:
		return Byte(x), nil
	case bool:
		return Bool(x), nil
	case int16:
		return Int16(x), nil
	case uint16:
		return Uint16(x), nil
	case int32:
		return Int32(x), nil
	case uint32:
		return Uint32(x), nil
	case int64:
		return Int64(x), nil
	case uint64:
		return Uint64(x), nil
	case float64:
		return Double(x), nil
	case string:
		return String(x), nil
	case dbus.ObjectPath:
		return ObjectPath(x), nil
	case dbus.Signature:
		return TypeSignature(x.String()), nil
	case dbus.UnixFD:
		return UnixFD(x), nil
	case dbus.UnixFDIndex:
		// Only seen when the transport did not pass descriptors; the index is
		// the closest thing to a descriptor number available.
		return UnixFD(int32(x)), nil
	case dbus.Variant:
		inner, err := FromGo(x.Value())
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", x.Signature(), err)
		}
		return Variant{Value: inner}, nil
	case []interface{}:
		fields := make([]Value, len(x))
		for i, field := range x {
			value, err := FromGo(field)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			fields[i] = value
		}
		return Struct{Fields: fields}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return arrayFromReflect(rv)
	case reflect.Map:
		return dictFromReflect(rv)
	default:
		return nil, &UnsupportedTypeError{Type: rv.Type()}
	}
}

func arrayFromReflect(rv reflect.Value) (Value, error) {
	elem, err := signatureOfType(rv.Type().Elem())
	if err != nil {
		return nil, err
	}
	items := make([]Value, rv.Len())
	for i := range items {
		value, err := FromGo(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items[i] = value
	}
	if strings.Contains(elem, genericStruct) && len(items) > 0 {
		elem = items[0].Signature()
	}
	return Array{ElemSignature: elem, Items: items}, nil
}

// dictFromReflect decodes a Go map. Go maps are unordered, so entries are
// sorted by key to keep the decoded value deterministic.
func dictFromReflect(rv reflect.Value) (Value, error) {
	keySig, err := signatureOfType(rv.Type().Key())
	if err != nil {
		return nil, err
	}
	valueSig, err := signatureOfType(rv.Type().Elem())
	if err != nil {
		return nil, err
	}

	keys := rv.MapKeys()
	sort.SliceStable(keys, func(i, j int) bool {
		return lessKey(keys[i], keys[j])
	})

	entries := make([]Entry, len(keys))
	for i, key := range keys {
		k, err := FromGo(key.Interface())
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", key.Interface(), err)
		}
		value, err := FromGo(rv.MapIndex(key).Interface())
		if err != nil {
			return nil, fmt.Errorf("value for key %v: %w", key.Interface(), err)
		}
		entries[i] = Entry{Key: k, Value: value}
	}
	if strings.Contains(valueSig, genericStruct) && len(entries) > 0 {
		valueSig = entries[0].Value.Signature()
	}
	return Dict{KeySignature: keySig, ValueSignature: valueSig, Entries: entries}, nil
}

func lessKey(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return a.Uint() < b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() < b.Float()
	case reflect.String:
		return a.String() < b.String()
	case reflect.Bool:
		return !a.Bool() && b.Bool()
	default:
		return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
	}
}

// signatureOfType maps the Go element types godbus produces to D-Bus
// signatures. Structs decode to []interface{} without field types, so they
// are reported with the generic struct code "r".
func signatureOfType(t reflect.Type) (string, error) {
	switch t {
	case variantType:
		return "v", nil
	case objectPathType:
		return "o", nil
	case signatureType:
		return "g", nil
	case unixFDType, unixFDIdxType:
		return "h", nil
	case interfacesType:
		return genericStruct, nil
	}

	switch t.Kind() {
	case reflect.Uint8:
		return "y", nil
	case reflect.Bool:
		return "b", nil
	case reflect.Int16:
		return "n", nil
	case reflect.Uint16:
		return "q", nil
	case reflect.Int32:
		return "i", nil
	case reflect.Uint32:
		return "u", nil
	case reflect.Int64:
		return "x", nil
	case reflect.Uint64:
		return "t", nil
	case reflect.Float64:
		return "d", nil
	case reflect.String:
		return "s", nil
	case reflect.Interface:
		return "v", nil
	case reflect.Slice, reflect.Array:
		elem, err := signatureOfType(t.Elem())
		if err != nil {
			return "", err
		}
		return "a" + elem, nil
	case reflect.Map:
		key, err := signatureOfType(t.Key())
		if err != nil {
			return "", err
		}
		value, err := signatureOfType(t.Elem())
		if err != nil {
			return "", err
		}
		return "a{" + key + value + "}", nil
	default:
		return "", &UnsupportedTypeError{Type: t}
	}
}
