package task

import (
	"encoding/json"
)

// Codec serializes job outputs for the job cache.
type Codec interface {
	// Ext is the file extension of encoded objects, without the dot.
	Ext() string
	Marshal(v Data) ([]byte, error)
	Unmarshal(b []byte) (Data, error)
}

// JSONCodec stores outputs as JSON. Decoded values use the generic JSON
// mapping (map[string]any, []any, float64, string, bool).
type JSONCodec struct{}

func (JSONCodec) Ext() string { return "json" }

func (JSONCodec) Marshal(v Data) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(b []byte) (Data, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// TypedJSONCodec decodes outputs into T instead of the generic mapping.
type TypedJSONCodec[T any] struct{}

func (TypedJSONCodec[T]) Ext() string { return "json" }

func (TypedJSONCodec[T]) Marshal(v Data) ([]byte, error) { return json.Marshal(v) }

func (TypedJSONCodec[T]) Unmarshal(b []byte) (Data, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}
