package pattern

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseHelloWorld(t *testing.T) {
	p, err := Parse("Hi [wo|rl]!")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Pattern{
		Literal{Text: "Hi"},
		Whitespace{},
		OptionSet{Options: []string{"wo", "rl"}},
		Literal{Text: "!"},
	}
	if !reflect.DeepEqual(p, want) {
		t.Fatalf("tokens: got %#v want %#v", p, want)
	}
	if p.String() != "Hi [wo|rl]!" {
		t.Fatalf("round trip: %q", p.String())
	}
}

func TestParseTokenShapes(t *testing.T) {
	cases := []struct {
		in   string
		want Pattern
	}{
		{"a", Pattern{Literal{Text: "a"}}},
		{"  ", Pattern{Whitespace{}, Whitespace{}}},
		{"[x]", Pattern{OptionSet{Options: []string{"x"}}}},
		{"a|b", Pattern{Literal{Text: "a|b"}}},
		{"p4ss[1|2|3]w0rd", Pattern{Literal{Text: "p4ss"}, OptionSet{Options: []string{"1", "2", "3"}}, Literal{Text: "w0rd"}}},
		{"[a][b]", Pattern{OptionSet{Options: []string{"a"}}, OptionSet{Options: []string{"b"}}}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: got %#v want %#v", tc.in, got, tc.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		in     string
		offset int
		reason string
	}{
		{"", 0, "empty pattern"},
		{"[|a]", 1, "empty option"},
		{"[a|]", 3, "empty option"},
		{"[]", 1, "empty option"},
		{"[a", 2, "unterminated option list"},
		{"a]", 1, "unbalanced ']'"},
		{"[a[b]]", 2, "nested '['"},
		{"[a b]", 2, "space inside option list"},
		{"caf\xc3\xa9", 3, "non-ASCII byte"},
		{"[\xc3]", 1, "non-ASCII byte"},
		{strings.Repeat("x", MaxRunLength+1), 0, "text run longer than"},
	}
	for _, tc := range cases {
		_, err := Parse(tc.in)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%q: want *ParseError, got %v", tc.in, err)
		}
		if pe.Offset != tc.offset || !strings.HasPrefix(pe.Reason, tc.reason) {
			t.Fatalf("%q: got offset %d reason %q, want %d %q", tc.in, pe.Offset, pe.Reason, tc.offset, tc.reason)
		}
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustParse("[")
}
