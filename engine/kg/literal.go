package kg

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxLiteralDepth bounds nesting of lists and maps in a fragment.
const maxLiteralDepth = 32

// DecodeProperties decodes a properties fragment. The fragment must be a
// dict literal, a set literal (each element becomes a key mapped to true)
// or None. Nothing in the fragment is ever evaluated.
func DecodeProperties(fragment string) (map[string]any, error) {
	p := &literalParser{src: fragment}
	p.skipSpace()
	if p.eof() {
		return nil, p.fail("empty fragment")
	}
	v, err := p.value(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.fail("unexpected trailing input")
	}
	switch tv := v.(type) {
	case map[string]any:
		return tv, nil
	case setLiteral:
		props := make(map[string]any, len(tv))
		for _, k := range tv {
			props[k] = true
		}
		return props, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, &PropertiesDecodeError{Fragment: fragment, Reason: fmt.Sprintf("expected a dict or set, got %T", v)}
	}
}

// DecodeLiteral decodes one literal value: a string, int64, float64, bool,
// nil, []any or map[string]any. Sets decode to a []any of their elements.
func DecodeLiteral(s string) (any, error) {
	p := &literalParser{src: s}
	p.skipSpace()
	v, err := p.value(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.fail("unexpected trailing input")
	}
	if set, ok := v.(setLiteral); ok {
		return set.list(), nil
	}
	return v, nil
}

// setLiteral is a decoded {a, b} literal with elements in source order.
type setLiteral []string

func (s setLiteral) list() []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) eof() bool { return p.pos >= len(p.src) }

func (p *literalParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) fail(reason string) error {
	return &PropertiesDecodeError{Fragment: p.src, Offset: p.pos, Reason: reason}
}

func (p *literalParser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) value(depth int) (any, error) {
	if depth > maxLiteralDepth {
		return nil, p.fail("nesting too deep")
	}
	p.skipSpace()
	if p.eof() {
		return nil, p.fail("unexpected end of input")
	}
	switch c := p.peek(); {
	case c == '\'' || c == '"':
		return p.str()
	case c == '{':
		return p.brace(depth)
	case c == '[':
		p.pos++
		return p.sequence(']', depth)
	case c == '(':
		p.pos++
		return p.sequence(')', depth)
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		return p.ident()
	default:
		return nil, p.fail(fmt.Sprintf("unexpected character %q", c))
	}
}

func (p *literalParser) str() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.fail("unterminated string")
		}
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\':
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
}

func (p *literalParser) escape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.eof() {
		return p.fail("unterminated escape")
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
	case 'x':
		return p.hexEscape(b, 2)
	case 'u':
		return p.hexEscape(b, 4)
	default:
		// Unknown escapes are kept verbatim.
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *literalParser) hexEscape(b *strings.Builder, n int) error {
	if p.pos+n > len(p.src) {
		return p.fail("short hex escape")
	}
	code, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
	if err != nil {
		return p.fail("invalid hex escape")
	}
	p.pos += n
	r := rune(code)
	if !utf8.ValidRune(r) {
		r = utf8.RuneError
	}
	b.WriteRune(r)
	return nil
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	isFloat := false
	digits := 0
loop:
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case isDigit(c):
			digits++
		case c == '.':
			isFloat = true
		case c == 'e' || c == 'E':
			isFloat = true
			if n := p.pos + 1; n < len(p.src) && (p.src[n] == '-' || p.src[n] == '+') {
				p.pos++
			}
		default:
			break loop
		}
		p.pos++
	}
	text := p.src[start:p.pos]
	if digits == 0 {
		p.pos = start
		return nil, p.fail(fmt.Sprintf("invalid number %q", text))
	}
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.pos = start
			return nil, p.fail(fmt.Sprintf("invalid number %q", text))
		}
		return f, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		p.pos = start
		return nil, p.fail(fmt.Sprintf("integer out of range %q", text))
	}
	return n, nil
}

func (p *literalParser) ident() (any, error) {
	start := p.pos
	for !p.eof() && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	switch word := p.src[start:p.pos]; word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	default:
		p.pos = start
		return nil, p.fail(fmt.Sprintf("unsupported token %q", word))
	}
}

// sequence parses list or tuple elements up to close; the opener has been
// consumed.
func (p *literalParser) sequence(close byte, depth int) (any, error) {
	out := []any{}
	for {
		p.skipSpace()
		if p.peek() == close {
			p.pos++
			return out, nil
		}
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		if set, ok := v.(setLiteral); ok {
			v = set.list()
		}
		out = append(out, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case close:
		default:
			return nil, p.fail(fmt.Sprintf("expected ',' or %q", close))
		}
	}
}

// brace parses a dict or set literal. {} is an empty dict.
func (p *literalParser) brace(depth int) (any, error) {
	p.pos++ // {
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return map[string]any{}, nil
	}
	first, err := p.value(depth + 1)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == ':' {
		return p.dictFrom(first, depth)
	}
	return p.setFrom(first, depth)
}

func (p *literalParser) dictFrom(firstKey any, depth int) (any, error) {
	out := map[string]any{}
	key := firstKey
	for {
		k, err := p.key(key)
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.fail("expected ':'")
		}
		p.pos++
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		if set, ok := v.(setLiteral); ok {
			v = set.list()
		}
		out[k] = v
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				return out, nil
			}
			if key, err = p.value(depth + 1); err != nil {
				return nil, err
			}
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, p.fail("expected ',' or '}'")
		}
	}
}

func (p *literalParser) setFrom(first any, depth int) (any, error) {
	var out setLiteral
	elem := first
	for {
		k, err := p.key(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				return out, nil
			}
			if elem, err = p.value(depth + 1); err != nil {
				return nil, err
			}
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, p.fail("expected ',' or '}'")
		}
	}
}

// key converts a decoded scalar into a map key. Containers are rejected.
func (p *literalParser) key(v any) (string, error) {
	switch tv := v.(type) {
	case string:
		return tv, nil
	case int64:
		return strconv.FormatInt(tv, 10), nil
	case float64:
		return strconv.FormatFloat(tv, 'g', -1, 64), nil
	case bool:
		if tv {
			return "True", nil
		}
		return "False", nil
	case nil:
		return "None", nil
	default:
		return "", p.fail(fmt.Sprintf("unhashable key of type %T", v))
	}
}

// literalExtent returns the length of the literal at the start of s by
// balancing brackets outside quoted strings. A bare word (None) is also
// accepted. ok is false when no complete literal starts s.
func literalExtent(s string) (n int, ok bool) {
	if s == "" {
		return 0, false
	}
	if isIdentStart(s[0]) {
		i := 0
		for i < len(s) && isIdentPart(s[i]) {
			i++
		}
		return i, true
	}
	if s[0] != '{' && s[0] != '[' && s[0] != '(' {
		return 0, false
	}
	var stack []byte
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '(':
			stack = append(stack, ')')
		case '}', ']', ')':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
