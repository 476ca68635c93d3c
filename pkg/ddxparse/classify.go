// Package ddxparse turns the loosely formatted diagnosis cells found in model
// evaluation exports into names and tiers.
//
// A cell may hold genuine JSON, a Python repr of a list or dict, or free text
// separated by commas, semicolons or newlines. Parsing never fails loudly:
// every function reports "nothing found" instead of returning an error, so a
// single malformed cell cannot abort processing of a table.
package ddxparse

import (
	"strings"
)

// Shape is the coarse form of a raw cell, decided before any parse attempt.
type Shape int

const (
	// ShapeEmpty is a blank cell.
	ShapeEmpty Shape = iota
	// ShapePlainText is anything not starting with a bracket.
	ShapePlainText
	// ShapeStructuredObject starts with '{'.
	ShapeStructuredObject
	// ShapeStructuredArray starts with '['.
	ShapeStructuredArray
)

// String returns the string representation of the shape
func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapePlainText:
		return "plain_text"
	case ShapeStructuredObject:
		return "structured_object"
	case ShapeStructuredArray:
		return "structured_array"
	default:
		return "unknown"
	}
}

// IsStructured reports whether the cell looks like JSON or a Python literal
func (s Shape) IsStructured() bool {
	return s == ShapeStructuredObject || s == ShapeStructuredArray
}

// Classify inspects the first significant character of raw.
func Classify(raw string) Shape {
	t := trimCell(raw)
	if t == "" {
		return ShapeEmpty
	}
	switch t[0] {
	case '{':
		return ShapeStructuredObject
	case '[':
		return ShapeStructuredArray
	default:
		return ShapePlainText
	}
}

// trimCell strips whitespace and a stray byte-order mark.
func trimCell(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
}
