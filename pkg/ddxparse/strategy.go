package ddxparse

// NameStrategy derives a single diagnosis name from a raw cell.
type NameStrategy struct {
	Name  string
	Apply func(raw string) (string, bool)
}

// ListStrategy derives an ordered list of diagnosis names from a raw cell.
type ListStrategy struct {
	Name  string
	Apply func(raw string) ([]string, bool)
}

// ExpectedStrategies is the fallback ladder for an expected-diagnosis cell.
// The plain-text strategy accepts any non-blank cell, so a structured cell
// that fails to decode ends up as its own trimmed text.
var ExpectedStrategies = []NameStrategy{
	{Name: "structured", Apply: structuredName},
	{Name: "plain_text", Apply: plainName},
}

// DifferentialStrategies is the fallback ladder for a differential-diagnoses cell.
var DifferentialStrategies = []ListStrategy{
	{Name: "structured", Apply: structuredNames},
	{Name: "delimited", Apply: delimitedNames},
}

// ExpectedName runs ExpectedStrategies and returns the first non-empty name
// together with the strategy that produced it. Both are "" when the cell
// holds nothing usable.
func ExpectedName(raw string) (name string, via string) {
	for _, s := range ExpectedStrategies {
		if n, ok := s.Apply(raw); ok {
			return n, s.Name
		}
	}
	return "", ""
}

// DifferentialNames runs DifferentialStrategies and returns the first
// non-empty list together with the strategy that produced it.
func DifferentialNames(raw string) (names []string, via string) {
	for _, s := range DifferentialStrategies {
		if n, ok := s.Apply(raw); ok {
			return n, s.Name
		}
	}
	return nil, ""
}

func structuredName(raw string) (string, bool) {
	if !Classify(raw).IsStructured() {
		return "", false
	}
	v, ok := ParseStructured(raw)
	if !ok {
		return "", false
	}
	name := nameOf(v)
	return name, name != ""
}

func plainName(raw string) (string, bool) {
	t := trimCell(raw)
	return t, t != ""
}

func structuredNames(raw string) ([]string, bool) {
	if !Classify(raw).IsStructured() {
		return nil, false
	}
	v, ok := ParseStructured(raw)
	if !ok {
		return nil, false
	}
	names := namesOf(v)
	return names, len(names) > 0
}

func delimitedNames(raw string) ([]string, bool) {
	names := SplitDelimited(raw)
	return names, len(names) > 0
}
