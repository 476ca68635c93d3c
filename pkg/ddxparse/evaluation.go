package ddxparse

import (
	"strings"
)

// Entry is a diagnosis name with its tier label.
type Entry struct {
	Name string
	Tier string
}

// Evaluation is the content of a raw model-evaluation blob of the form
// {"expected": {"name", "tier"}, "differentials": [{"name", "tier"}, ...]}.
type Evaluation struct {
	Expected      Entry
	Differentials []Entry
}

// ParseEvaluation decodes a raw evaluation blob. ok is false unless the cell
// decodes to an object. Either part may be missing: Expected is zero when the
// blob has no usable "expected" value and Differentials is empty when it has
// no "differentials" array.
func ParseEvaluation(raw string) (eval Evaluation, ok bool) {
	if Classify(raw) != ShapeStructuredObject {
		return Evaluation{}, false
	}
	v, ok := ParseStructured(raw)
	if !ok {
		return Evaluation{}, false
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return Evaluation{}, false
	}

	switch exp := obj["expected"].(type) {
	case map[string]interface{}:
		eval.Expected = entryFromMap(exp)
	case string:
		eval.Expected = Entry{Name: strings.TrimSpace(exp)}
	}

	if diffs, isList := obj["differentials"].([]interface{}); isList {
		eval.Differentials = make([]Entry, 0, len(diffs))
		for _, item := range diffs {
			switch d := item.(type) {
			case nil:
				continue
			case map[string]interface{}:
				eval.Differentials = append(eval.Differentials, entryFromMap(d))
			default:
				eval.Differentials = append(eval.Differentials, Entry{Name: strings.TrimSpace(Stringify(d))})
			}
		}
	}
	return eval, true
}

// entryFromMap reads name and tier; missing keys become "".
func entryFromMap(m map[string]interface{}) Entry {
	return Entry{
		Name: strings.TrimSpace(Stringify(m["name"])),
		Tier: strings.TrimSpace(Stringify(m["tier"])),
	}
}
