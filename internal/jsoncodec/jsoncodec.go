// Package jsoncodec is the single place JSON text is produced and parsed.
package jsoncodec

import "github.com/bytedance/sonic"

var defaultConfig = sonic.ConfigStd

// numberConfig decodes numbers as json.Number so integers wider than 53 bits
// are not rounded through float64.
var numberConfig = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

// Marshal encodes v as compact JSON.
func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

// MarshalString encodes v as compact JSON text.
func MarshalString(v any) (string, error) {
	return defaultConfig.MarshalToString(v)
}

// UnmarshalNumbers decodes data into v, keeping numbers as json.Number.
func UnmarshalNumbers(data string, v any) error {
	return numberConfig.UnmarshalFromString(data, v)
}
