package ddxparse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Decoder turns a raw cell into a generic value. ok is false when the cell
// could not be decoded; decoders never panic and never return partial values.
type Decoder struct {
	Name   string
	Decode func(raw string) (value interface{}, ok bool)
}

// StructuredDecoders are tried in order by ParseStructured: JSON after
// repairing Python keywords, then the Python-literal grammar.
var StructuredDecoders = []Decoder{
	{Name: "json", Decode: decodeJSON},
	{Name: "python_literal", Decode: decodeLiteral},
}

// ParseStructured decodes a JSON or Python-literal cell with the first
// decoder that succeeds.
func ParseStructured(raw string) (interface{}, bool) {
	t := trimCell(raw)
	if t == "" {
		return nil, false
	}
	for _, d := range StructuredDecoders {
		if v, ok := d.Decode(t); ok {
			return v, true
		}
	}
	return nil, false
}

func decodeJSON(raw string) (interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(RepairPythonLiterals(raw))))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// reject trailing garbage such as `{"a":1} xyz`
	var extra interface{}
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return v, true
}

func decodeLiteral(raw string) (interface{}, bool) {
	v, err := ParseLiteral(raw)
	if err != nil {
		return nil, false
	}
	return v, true
}
