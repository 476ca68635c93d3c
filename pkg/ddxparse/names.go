package ddxparse

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NameKeys is the preference order used to pull a diagnosis name out of a
// dict-shaped value.
var NameKeys = []string{"name", "diagnosis", "text", "value"}

// Stringify renders a decoded value as display text. Strings are returned
// as-is, nil as "", containers as compact JSON.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// NameFromMap returns the first non-blank value stored under one of NameKeys.
func NameFromMap(m map[string]interface{}) (string, bool) {
	for _, k := range NameKeys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if name := strings.TrimSpace(Stringify(v)); name != "" {
			return name, true
		}
	}
	return "", false
}

// hasNameKey reports whether m carries any of NameKeys, blank or not.
func hasNameKey(m map[string]interface{}) bool {
	for _, k := range NameKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// itemName resolves one list element to a name: dicts through NameKeys, and
// the element itself stringified otherwise. A dict whose name keys are all
// blank or null resolves to "".
func itemName(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]interface{}:
		if name, ok := NameFromMap(t); ok {
			return name
		}
		if hasNameKey(t) {
			return ""
		}
		return Stringify(t)
	default:
		return strings.TrimSpace(Stringify(t))
	}
}

// nameOf resolves a decoded expected-diagnosis value to a single name. A list
// contributes its first resolvable element.
func nameOf(v interface{}) string {
	switch t := v.(type) {
	case map[string]interface{}:
		name, _ := NameFromMap(t)
		return name
	case []interface{}:
		for _, item := range t {
			if name := itemName(item); name != "" {
				return name
			}
		}
		return ""
	default:
		return strings.TrimSpace(Stringify(t))
	}
}

// listKeys are consulted when a differentials cell decodes to a dict that
// wraps the actual list.
var listKeys = []string{"differentials", "differential_diagnoses", "ddx"}

// namesOf resolves a decoded differentials value to an ordered list of names.
// Blank names are dropped; duplicates are kept.
func namesOf(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		names := make([]string, 0, len(t))
		for _, item := range t {
			if name := itemName(item); name != "" {
				names = append(names, name)
			}
		}
		return names
	case map[string]interface{}:
		for _, k := range listKeys {
			if inner, ok := t[k].([]interface{}); ok {
				return namesOf(inner)
			}
		}
		if name := itemName(t); name != "" {
			return []string{name}
		}
	}
	return nil
}
