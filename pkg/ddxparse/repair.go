package ddxparse

import (
	"strings"
)

// pythonLiterals maps Python repr keywords to their JSON spelling.
var pythonLiterals = map[string]string{
	"None":  "null",
	"True":  "true",
	"False": "false",
}

// RepairPythonLiterals rewrites bare None/True/False tokens to null/true/false
// so that a Python-repr structure has a chance to decode as JSON. Text inside
// quoted strings is left untouched, as are identifiers that merely contain
// those words ("NoneType", "Falsely").
func RepairPythonLiterals(raw string) string {
	if !strings.Contains(raw, "None") && !strings.Contains(raw, "True") && !strings.Contains(raw, "False") {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))

	var quote byte
	for i := 0; i < len(raw); {
		c := raw[i]

		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(raw) {
				b.WriteByte(raw[i+1])
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			i++
			continue
		}

		if c == '"' || c == '\'' {
			quote = c
			b.WriteByte(c)
			i++
			continue
		}

		if isIdentStart(c) {
			j := i + 1
			for j < len(raw) && isIdentPart(raw[j]) {
				j++
			}
			word := raw[i:j]
			if repl, ok := pythonLiterals[word]; ok {
				b.WriteString(repl)
			} else {
				b.WriteString(word)
			}
			i = j
			continue
		}

		b.WriteByte(c)
		i++
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
