package ddxparse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Shape
	}{
		{"Empty", "", ShapeEmpty},
		{"Whitespace only", "  \n\t", ShapeEmpty},
		{"Object", `{"name": "Pneumonia"}`, ShapeStructuredObject},
		{"Object with leading space", "  {'a': 1}", ShapeStructuredObject},
		{"Array", `["A", "B"]`, ShapeStructuredArray},
		{"Python list", "['A', 'B']", ShapeStructuredArray},
		{"Plain text", "Pneumonia", ShapePlainText},
		{"Delimited text", "A, B; C", ShapePlainText},
		{"BOM then object", "\ufeff{}", ShapeStructuredObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}

func TestShape_IsStructured(t *testing.T) {
	assert.True(t, ShapeStructuredObject.IsStructured())
	assert.True(t, ShapeStructuredArray.IsStructured())
	assert.False(t, ShapePlainText.IsStructured())
	assert.False(t, ShapeEmpty.IsStructured())
	assert.Equal(t, "structured_array", ShapeStructuredArray.String())
}

func TestRepairPythonLiterals(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"No keywords", `{"a": 1}`, `{"a": 1}`},
		{"Bare keywords", `{"a": None, "b": True, "c": False}`, `{"a": null, "b": true, "c": false}`},
		{"Keywords inside strings untouched", `{"name": "None of the above", "t": None}`, `{"name": "None of the above", "t": null}`},
		{"Single-quoted string untouched", `['True story', True]`, `['True story', true]`},
		{"Escaped quote inside string", `{"a": "say \"None\"", "b": None}`, `{"a": "say \"None\"", "b": null}`},
		{"Identifier containing keyword", `{"a": NoneType}`, `{"a": NoneType}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairPythonLiterals(tt.input))
		})
	}
}

func TestParseLiteral(t *testing.T) {
	t.Run("List of strings", func(t *testing.T) {
		v, err := ParseLiteral("['Pneumonia', 'Sepsis']")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"Pneumonia", "Sepsis"}, v)
	})

	t.Run("Dict with Python keywords", func(t *testing.T) {
		v, err := ParseLiteral("{'name': 'Colles fracture', 'tier': None, 'ok': True}")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"name": "Colles fracture", "tier": nil, "ok": true}, v)
	})

	t.Run("Tuple and trailing comma", func(t *testing.T) {
		v, err := ParseLiteral("('A', 'B',)")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"A", "B"}, v)
	})

	t.Run("Set decodes to list", func(t *testing.T) {
		v, err := ParseLiteral("{'A', 'B'}")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"A", "B"}, v)
	})

	t.Run("Escapes and apostrophes", func(t *testing.T) {
		v, err := ParseLiteral(`["Colles' fracture", 'line\nbreak', 'é']`)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"Colles' fracture", "line\nbreak", "é"}, v)
	})

	t.Run("Numbers", func(t *testing.T) {
		v, err := ParseLiteral("[1, -2.5, 1e3]")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{json.Number("1"), json.Number("-2.5"), json.Number("1e3")}, v)
	})

	t.Run("Unicode text", func(t *testing.T) {
		v, err := ParseLiteral("['급성 충수염', '장염']")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"급성 충수염", "장염"}, v)
	})

	t.Run("Prefixed string", func(t *testing.T) {
		v, err := ParseLiteral("[u'A']")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"A"}, v)
	})

	invalid := []string{
		"",
		"['A', 'B'",
		"['A' 'B' x]",
		"{'a' 1}",
		"[A, B]",
		"['A'] trailing",
		"'unterminated",
	}
	for _, in := range invalid {
		t.Run("Invalid "+in, func(t *testing.T) {
			_, err := ParseLiteral(in)
			assert.Error(t, err)
		})
	}
}

func TestParseStructured(t *testing.T) {
	t.Run("Valid JSON", func(t *testing.T) {
		v, ok := ParseStructured(`{"a": [1, "x"]}`)
		require.True(t, ok)
		assert.Equal(t, map[string]interface{}{"a": []interface{}{json.Number("1"), "x"}}, v)
	})

	t.Run("JSON with Python keywords", func(t *testing.T) {
		v, ok := ParseStructured(`{"a": None}`)
		require.True(t, ok)
		assert.Equal(t, map[string]interface{}{"a": nil}, v)
	})

	t.Run("Python repr falls through to literal decoder", func(t *testing.T) {
		v, ok := ParseStructured(`{'a': 'b'}`)
		require.True(t, ok)
		assert.Equal(t, map[string]interface{}{"a": "b"}, v)
	})

	t.Run("Trailing garbage rejected", func(t *testing.T) {
		_, ok := ParseStructured(`{"a": 1} extra`)
		assert.False(t, ok)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, ok := ParseStructured(`{not json at all`)
		assert.False(t, ok)
	})
}

func TestExpectedName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantVia string
	}{
		{"Plain text", "Pneumonia", "Pneumonia", "plain_text"},
		{"Plain text trimmed", "  Pneumonia \n", "Pneumonia", "plain_text"},
		{"JSON dict name", `{"name": "Sepsis", "tier": "1"}`, "Sepsis", "structured"},
		{"Dict diagnosis key", `{'diagnosis': 'Appendicitis'}`, "Appendicitis", "structured"},
		{"Key preference order", `{'value': 'V', 'text': 'T'}`, "T", "structured"},
		{"List takes first", `['Colles fracture', 'Smith fracture']`, "Colles fracture", "structured"},
		{"Broken JSON kept verbatim", `{"name": "Sepsis"`, `{"name": "Sepsis"`, "plain_text"},
		{"Dict without name keys kept verbatim", `{"foo": "bar"}`, `{"foo": "bar"}`, "plain_text"},
		{"Empty", "", "", ""},
		{"Blank", "   ", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, via := ExpectedName(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantVia, via)
		})
	}
}

func TestDifferentialNames(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantVia string
	}{
		{"Python list literal", "['Pneumonia', 'Sepsis']", []string{"Pneumonia", "Sepsis"}, "structured"},
		{"JSON list", `["Pneumonia", "Sepsis"]`, []string{"Pneumonia", "Sepsis"}, "structured"},
		{"List of dicts", `[{"name": "A", "tier": "1"}, {"diagnosis": "B"}]`, []string{"A", "B"}, "structured"},
		{"Dict item without name key is stringified", `[{"code": "J18"}]`, []string{`{"code":"J18"}`}, "structured"},
		{"Dict item with null name dropped", "[{'name': None, 'tier': 'T1'}, {'name': 'Sepsis'}]", []string{"Sepsis"}, "structured"},
		{"Dict item with blank name dropped", `[{"name": "  "}, "UTI"]`, []string{"UTI"}, "structured"},
		{"Dict wrapping list", `{"differentials": ["A", "B"]}`, []string{"A", "B"}, "structured"},
		{"Duplicates kept", "['A', 'A']", []string{"A", "A"}, "structured"},
		{"Delimited", "A, B; C", []string{"A", "B", "C"}, "delimited"},
		{"Newlines", "A\nB\r\nC", []string{"A", "B", "C"}, "delimited"},
		{"Broken literal falls back to split", "['Pneumonia', 'Sepsis'", []string{"Pneumonia", "Sepsis"}, "delimited"},
		{"Empty pieces dropped", "A,, ;B,", []string{"A", "B"}, "delimited"},
		{"Empty list", "[]", nil, ""},
		{"Empty", "", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, via := DifferentialNames(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantVia, via)
		})
	}
}

func TestSplitDelimited(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, SplitDelimited("A, B; C"))
	assert.Equal(t, []string{"Colles' fracture", "Sepsis"}, SplitDelimited("[Colles' fracture], 'Sepsis'"))
	assert.Equal(t, []string{"Fracture (distal radius)"}, SplitDelimited("Fracture (distal radius)"))
	assert.Equal(t, []string{"가", "나"}, SplitDelimited("가，나"))
	assert.Empty(t, SplitDelimited(" , ; \n"))
}

func TestSplitPhysicianList(t *testing.T) {
	in := "Colles' fracture\nDistal radial fracture, Radial nerve injury；Colles' fracture\n\n"
	assert.Equal(t,
		[]string{"Colles' fracture", "Distal radial fracture", "Radial nerve injury"},
		SplitPhysicianList(in))
	assert.Equal(t, []string{"A", "B"}, SplitPhysicianList("  A ,B\n A"))
	assert.Empty(t, SplitPhysicianList(""))
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"A", " B ", "a", "B"}, Dedupe([]string{"A", " B ", "A", "", "a", "B"}))
	assert.Equal(t, []string{"Sepsis", "Sepsis."}, Dedupe([]string{"Sepsis", "Sepsis.", "Sepsis"}))
}

func TestParseEvaluation(t *testing.T) {
	t.Run("Full blob", func(t *testing.T) {
		raw := `{"expected": {"name": "Pneumonia", "tier": "Tier 1"},
			"differentials": [{"name": "Sepsis", "tier": "Tier 2"}, "Bronchitis", {"tier": "Tier 3"}]}`
		eval, ok := ParseEvaluation(raw)
		require.True(t, ok)
		assert.Equal(t, Entry{Name: "Pneumonia", Tier: "Tier 1"}, eval.Expected)
		assert.Equal(t, []Entry{
			{Name: "Sepsis", Tier: "Tier 2"},
			{Name: "Bronchitis"},
			{Name: "", Tier: "Tier 3"},
		}, eval.Differentials)
	})

	t.Run("Python repr blob", func(t *testing.T) {
		raw := `{'expected': {'name': 'Sepsis', 'tier': None}, 'differentials': [{'name': 'UTI', 'tier': 'low'}]}`
		eval, ok := ParseEvaluation(raw)
		require.True(t, ok)
		assert.Equal(t, Entry{Name: "Sepsis"}, eval.Expected)
		assert.Equal(t, []Entry{{Name: "UTI", Tier: "low"}}, eval.Differentials)
	})

	t.Run("JSON with None keywords", func(t *testing.T) {
		eval, ok := ParseEvaluation(`{"expected": {"name": "A", "tier": None}, "differentials": []}`)
		require.True(t, ok)
		assert.Equal(t, "A", eval.Expected.Name)
		assert.Empty(t, eval.Differentials)
	})

	t.Run("Missing differentials", func(t *testing.T) {
		eval, ok := ParseEvaluation(`{"expected": {"name": "A"}}`)
		require.True(t, ok)
		assert.Equal(t, "A", eval.Expected.Name)
		assert.Empty(t, eval.Differentials)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		_, ok := ParseEvaluation(`{"expected": {"name": "A"`)
		assert.False(t, ok)
	})

	t.Run("Array is not an evaluation", func(t *testing.T) {
		_, ok := ParseEvaluation(`[1, 2]`)
		assert.False(t, ok)
	})

	t.Run("Empty", func(t *testing.T) {
		_, ok := ParseEvaluation("")
		assert.False(t, ok)
	})
}
