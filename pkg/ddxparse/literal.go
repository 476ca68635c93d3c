package ddxparse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxLiteralDepth bounds nesting so hostile input cannot exhaust the stack.
const maxLiteralDepth = 64

// ParseLiteral parses a Python literal expression as produced by repr() of
// lists, tuples, sets, dicts, strings, numbers, None, True and False.
//
// Dicts decode to map[string]interface{} (non-string keys are stringified),
// lists, tuples and sets to []interface{}, numbers to json.Number and the
// keywords to nil/true/false, mirroring encoding/json with UseNumber.
// JSON's null/true/false are accepted as well since exports often mix both.
func ParseLiteral(raw string) (interface{}, error) {
	p := &literalParser{src: trimCell(raw)}
	if p.src == "" {
		return nil, fmt.Errorf("empty literal")
	}
	v, err := p.parseValue(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input")
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("literal offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) parseValue(depth int) (interface{}, error) {
	if depth > maxLiteralDepth {
		return nil, p.errorf("nesting too deep")
	}
	p.skipSpace()
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '[':
		return p.parseSequence(depth, '[', ']')
	case c == '(':
		return p.parseSequence(depth, '(', ')')
	case c == '{':
		return p.parseBrace(depth)
	case c == '\'' || c == '"':
		return p.parseStrings()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseKeyword()
	}
	return nil, p.errorf("unexpected character %q", c)
}

// parseSequence handles lists and tuples, allowing a trailing comma.
func (p *literalParser) parseSequence(depth int, open, close byte) (interface{}, error) {
	p.pos++ // open
	items := []interface{}{}
	for {
		p.skipSpace()
		if p.peek() == close {
			p.pos++
			return items, nil
		}
		v, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case close:
			p.pos++
			return items, nil
		default:
			return nil, p.errorf("expected ',' or %q", close)
		}
	}
}

// parseBrace handles dicts and sets; a set decodes to a list.
func (p *literalParser) parseBrace(depth int) (interface{}, error) {
	p.pos++ // {
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return map[string]interface{}{}, nil
	}

	first, err := p.parseValue(depth + 1)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != ':' {
		items := []interface{}{first}
		for {
			p.skipSpace()
			switch p.peek() {
			case '}':
				p.pos++
				return items, nil
			case ',':
				p.pos++
				p.skipSpace()
				if p.peek() == '}' {
					p.pos++
					return items, nil
				}
				v, err := p.parseValue(depth + 1)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			default:
				return nil, p.errorf("expected ',' or '}' in set")
			}
		}
	}

	obj := map[string]interface{}{}
	key := first
	for {
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' in dict")
		}
		p.pos++
		v, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}
		obj[Stringify(key)] = v

		p.skipSpace()
		switch p.peek() {
		case '}':
			p.pos++
			return obj, nil
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				return obj, nil
			}
			if key, err = p.parseValue(depth + 1); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("expected ',' or '}' in dict")
		}
	}
}

// parseStrings reads one string literal plus any adjacent ones, which Python
// concatenates.
func (p *literalParser) parseStrings() (interface{}, error) {
	var b strings.Builder
	for {
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
		save := p.pos
		p.skipSpace()
		if c := p.peek(); c != '\'' && c != '"' {
			p.pos = save
			return b.String(), nil
		}
	}
}

func (p *literalParser) parseString() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\':
			if err := p.parseEscape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *literalParser) parseEscape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return p.errorf("dangling escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '0':
		b.WriteByte(0)
	case '\\', '\'', '"', '/':
		b.WriteByte(c)
	case '\n':
		// line continuation
	case 'x':
		return p.parseHexRune(b, 2)
	case 'u':
		return p.parseHexRune(b, 4)
	case 'U':
		return p.parseHexRune(b, 8)
	default:
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *literalParser) parseHexRune(b *strings.Builder, digits int) error {
	if p.pos+digits > len(p.src) {
		return p.errorf("short hex escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+digits], 16, 32)
	if err != nil {
		return p.errorf("bad hex escape")
	}
	p.pos += digits
	r := rune(n)
	if !utf8.ValidRune(r) {
		r = utf8.RuneError
	}
	b.WriteRune(r)
	return nil
}

func (p *literalParser) parseNumber() (interface{}, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' || c == '_' {
			p.pos++
			continue
		}
		break
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	text = strings.TrimPrefix(text, "+")
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return nil, p.errorf("bad number %q", text)
	}
	return json.Number(text), nil
}

func (p *literalParser) parseKeyword() (interface{}, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	word := p.src[start:p.pos]
	switch word {
	case "None", "null":
		return nil, nil
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	}
	// string prefixes: u'..', r'..', b'..'
	if c := p.peek(); (c == '\'' || c == '"') && len(word) <= 2 && strings.Trim(strings.ToLower(word), "urb") == "" {
		return p.parseStrings()
	}
	p.pos = start
	return nil, p.errorf("unknown identifier %q", word)
}
