// Package convert maps D-Bus values onto a JSON tree.
//
// The tree is made of nil, bool, int64, uint64, float64, string, []any and
// *Object. Integers keep their full 64-bit value; it is up to whoever parses
// the serialized text to keep them exact.
package convert

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/mcncl/dbusjq/internal/variant"
)

// ErrNilValue is returned for a nil Value, which is not a D-Bus value.
var ErrNilValue = errors.New("nil value")

// KeyCollisionError is returned when two distinct dict keys coerce to the
// same JSON object key.
type KeyCollisionError struct {
	Key    string
	First  variant.Value
	Second variant.Value
}

func (e *KeyCollisionError) Error() string {
	return fmt.Sprintf("dict keys %s %v and %s %v both map to JSON key %q",
		e.First.Signature(), e.First, e.Second.Signature(), e.Second, e.Key)
}

// MalformedDictError is returned when a dict cannot be enumerated as
// key/value pairs.
type MalformedDictError struct {
	Index int
	Err   error
}

func (e *MalformedDictError) Error() string {
	return fmt.Sprintf("dict couldn't be converted into a JSON object: entry %d: %v", e.Index, e.Err)
}

func (e *MalformedDictError) Unwrap() error {
	return e.Err
}

// Convert returns the JSON tree for v.
func Convert(v variant.Value) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, ErrNilValue
	case variant.Byte:
		return uint64(x), nil
	case variant.Uint16:
		return uint64(x), nil
	case variant.Uint32:
		return uint64(x), nil
	case variant.Uint64:
		return uint64(x), nil
	case variant.Int16:
		return int64(x), nil
	case variant.Int32:
		return int64(x), nil
	case variant.Int64:
		return int64(x), nil
	case variant.UnixFD:
		return int64(x), nil
	case variant.Double:
		return convertDouble(float64(x)), nil
	case variant.Bool:
		return bool(x), nil
	case variant.String:
		return string(x), nil
	case variant.ObjectPath:
		return string(x), nil
	case variant.TypeSignature:
		return string(x), nil
	case variant.Variant:
		return Convert(x.Value)
	case variant.Array:
		return convertList(x.Items, "element")
	case variant.Struct:
		return convertList(x.Fields, "field")
	case variant.Dict:
		return convertDict(x)
	default:
		return nil, fmt.Errorf("unhandled variant type %T", v)
	}
}

// convertDouble maps NaN and the infinities, which JSON cannot express, to null.
func convertDouble(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func convertList(values []variant.Value, what string) ([]any, error) {
	out := make([]any, len(values))
	for i, value := range values {
		converted, err := Convert(value)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", what, i, err)
		}
		out[i] = converted
	}
	return out, nil
}

func convertDict(d variant.Dict) (*Object, error) {
	obj := NewObject(len(d.Entries))
	sources := make(map[string]variant.Value, len(d.Entries))
	for i, entry := range d.Entries {
		if entry.Key == nil || entry.Value == nil {
			return nil, &MalformedDictError{Index: i, Err: ErrNilValue}
		}
		key, err := KeyString(entry.Key)
		if err != nil {
			return nil, &MalformedDictError{Index: i, Err: err}
		}
		value, err := Convert(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		if !obj.insert(key, value) {
			return nil, &KeyCollisionError{Key: key, First: sources[key], Second: entry.Key}
		}
		sources[key] = entry.Key
	}
	return obj, nil
}

// KeyString returns the JSON object key for a dict key. Only basic types,
// or a variant holding one, can be keys.
func KeyString(v variant.Value) (string, error) {
	switch x := v.(type) {
	case variant.Byte:
		return strconv.FormatUint(uint64(x), 10), nil
	case variant.Uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case variant.Uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case variant.Uint64:
		return strconv.FormatUint(uint64(x), 10), nil
	case variant.Int16:
		return strconv.FormatInt(int64(x), 10), nil
	case variant.Int32:
		return strconv.FormatInt(int64(x), 10), nil
	case variant.Int64:
		return strconv.FormatInt(int64(x), 10), nil
	case variant.UnixFD:
		return strconv.FormatInt(int64(x), 10), nil
	case variant.Double:
		return strconv.FormatFloat(float64(x), 'g', -1, 64), nil
	case variant.Bool:
		return strconv.FormatBool(bool(x)), nil
	case variant.String:
		return string(x), nil
	case variant.ObjectPath:
		return string(x), nil
	case variant.TypeSignature:
		return string(x), nil
	case variant.Variant:
		return KeyString(x.Value)
	case nil:
		return "", ErrNilValue
	default:
		return "", fmt.Errorf("key of type %s is not a basic type", v.Signature())
	}
}

// SignatureOf returns the D-Bus signature of v as a JSON string.
func SignatureOf(v variant.Value) any {
	if v == nil {
		return ""
	}
	return v.Signature()
}
