package pattern

import "strings"

// Token is one element of a parsed pattern. The set of implementations is
// closed: Literal, Whitespace and OptionSet.
type Token interface {
	token()
	String() string
}

// Literal is a run of plain text whose letters are case-permuted.
type Literal struct {
	Text string
}

// Whitespace stands for a single space in the input.
type Whitespace struct{}

// OptionSet is a bracketed list of alternatives.
type OptionSet struct {
	Options []string
}

func (Literal) token()    {}
func (Whitespace) token() {}
func (OptionSet) token()  {}

func (t Literal) String() string  { return t.Text }
func (Whitespace) String() string { return " " }
func (t OptionSet) String() string {
	return "[" + strings.Join(t.Options, "|") + "]"
}

// Pattern is the ordered token sequence of one input line.
type Pattern []Token

// String renders the pattern back into its source syntax.
func (p Pattern) String() string {
	var b strings.Builder
	for _, t := range p {
		b.WriteString(t.String())
	}
	return b.String()
}
