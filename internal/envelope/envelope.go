// Package envelope wraps a converted signal body into the record handed to
// the query engine.
package envelope

import (
	"github.com/mcncl/dbusjq/internal/convert"
	"github.com/mcncl/dbusjq/internal/errors"
	"github.com/mcncl/dbusjq/internal/jsoncodec"
	"github.com/mcncl/dbusjq/internal/models"
	"github.com/mcncl/dbusjq/internal/variant"
)

// Build converts an event into its record. The body is treated as one
// struct holding every argument, so data is always a JSON array.
func Build(event models.Event) (models.Record, error) {
	body, err := variant.FromBody(event.Body)
	if err != nil {
		return models.Record{}, errors.NewPayloadError("couldn't deserialize message", err)
	}

	data, err := convert.Convert(body)
	if err != nil {
		return models.Record{}, errors.NewConversionError("couldn't convert signal body to JSON", err)
	}

	return models.Record{
		Signal:    event.Member,
		Data:      data,
		Signature: signature(event, body),
	}, nil
}

// signature prefers the header signature: godbus decodes structs as
// []interface{}, so an empty array of structs has no element type left to
// derive one from.
func signature(event models.Event, body variant.Struct) any {
	if event.Signature != "" {
		return "(" + event.Signature + ")"
	}
	return convert.SignatureOf(body)
}

// Marshal serializes a record to compact JSON text.
func Marshal(record models.Record) (string, error) {
	text, err := jsoncodec.MarshalString(record)
	if err != nil {
		return "", errors.NewConversionError("couldn't serialize record", err)
	}
	return text, nil
}
