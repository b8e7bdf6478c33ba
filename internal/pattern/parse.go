package pattern

import "fmt"

// MaxRunLength bounds a single text run or option. Each run expands to up to
// 2^len case variants.
const MaxRunLength = 20

// ParseError reports malformed pattern input.
type ParseError struct {
	Input  string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pattern: %s at offset %d in %q", e.Reason, e.Offset, e.Input)
}

// Parse tokenizes a pattern line.
//
//	pattern := token+
//	token   := ' ' | '[' option ('|' option)* ']' | text
//	text    := (ASCII except '[' ']' ' ')+
//	option  := (ASCII except '[' ']' '|' ' ')+
//
// Empty input and empty options are rejected.
func Parse(input string) (Pattern, error) {
	p := &parser{in: input}
	if input == "" {
		return nil, p.fail("empty pattern")
	}
	var out Pattern
	for p.pos < len(p.in) {
		c := p.in[p.pos]
		switch {
		case c >= 0x80:
			return nil, p.fail("non-ASCII byte")
		case c == ' ':
			out = append(out, Whitespace{})
			p.pos++
		case c == '[':
			t, err := p.group()
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		case c == ']':
			return nil, p.fail("unbalanced ']'")
		default:
			t, err := p.text()
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// MustParse is Parse for patterns known to be valid. It panics on error.
func MustParse(input string) Pattern {
	p, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return p
}

type parser struct {
	in  string
	pos int
}

func (p *parser) fail(reason string) *ParseError {
	return &ParseError{Input: p.in, Offset: p.pos, Reason: reason}
}

func isTextByte(c byte) bool {
	return c < 0x80 && c != '[' && c != ']' && c != ' '
}

func isOptionByte(c byte) bool {
	return isTextByte(c) && c != '|'
}

func (p *parser) text() (Token, error) {
	start := p.pos
	for p.pos < len(p.in) && isTextByte(p.in[p.pos]) {
		p.pos++
	}
	if p.pos-start > MaxRunLength {
		p.pos = start
		return nil, p.fail(fmt.Sprintf("text run longer than %d bytes", MaxRunLength))
	}
	return Literal{Text: p.in[start:p.pos]}, nil
}

func (p *parser) group() (Token, error) {
	p.pos++ // '['
	var opts []string
	for {
		start := p.pos
		for p.pos < len(p.in) && isOptionByte(p.in[p.pos]) {
			p.pos++
		}
		if p.pos-start > MaxRunLength {
			p.pos = start
			return nil, p.fail(fmt.Sprintf("option longer than %d bytes", MaxRunLength))
		}
		if p.pos == len(p.in) {
			return nil, p.fail("unterminated option list")
		}
		c := p.in[p.pos]
		if p.pos == start && (c == '|' || c == ']') {
			return nil, p.fail("empty option")
		}
		switch {
		case c == '|':
			opts = append(opts, p.in[start:p.pos])
			p.pos++
		case c == ']':
			opts = append(opts, p.in[start:p.pos])
			p.pos++
			return OptionSet{Options: opts}, nil
		case c == '[':
			return nil, p.fail("nested '['")
		case c == ' ':
			return nil, p.fail("space inside option list")
		default:
			return nil, p.fail("non-ASCII byte")
		}
	}
}
