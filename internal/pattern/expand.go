package pattern

import (
	"fmt"
	"math/bits"
)

// CaseMode selects how literal text is case-permuted.
type CaseMode int

const (
	// CaseAll permutes every byte: 2^len variants.
	CaseAll CaseMode = iota
	// CaseFirst only toggles the first byte, upper first.
	CaseFirst
)

// ParseCaseMode maps "all" or "first" to a CaseMode.
func ParseCaseMode(s string) (CaseMode, error) {
	switch s {
	case "", "all":
		return CaseAll, nil
	case "first":
		return CaseFirst, nil
	}
	return CaseAll, fmt.Errorf("pattern: unknown case mode %q", s)
}

func (m CaseMode) String() string {
	if m == CaseFirst {
		return "first"
	}
	return "all"
}

// Separators are the expansions of a Whitespace token, in order.
var Separators = []string{"", " ", "_", ".", "-", "\t"}

// CasePermutations returns all 2^len(s) case variants of s. Entry i has byte
// k uppercased iff bit k of i is set. Bytes without case produce duplicates,
// which are kept. len(s) must stay below 63.
func CasePermutations(s string) []string {
	n := uint(len(s))
	total := uint64(1) << n
	out := make([]string, 0, total)
	buf := []byte(s)
	for i := uint64(0); i < total; i++ {
		for k := uint(0); k < n; k++ {
			if i&(1<<k) != 0 {
				buf[k] = upper(s[k])
			} else {
				buf[k] = lower(s[k])
			}
		}
		out = append(out, string(buf))
	}
	return out
}

// FirstLetterPermutations returns s with the first byte uppercased and then
// lowercased. Bytes after the first are kept as written.
func FirstLetterPermutations(s string) []string {
	if s == "" {
		return []string{""}
	}
	return []string{
		string(upper(s[0])) + s[1:],
		string(lower(s[0])) + s[1:],
	}
}

func (m CaseMode) permute(s string) []string {
	if m == CaseFirst {
		return FirstLetterPermutations(s)
	}
	return CasePermutations(s)
}

// Expand returns the local expansion of a single token with duplicates
// removed, keeping the first occurrence.
func Expand(t Token, mode CaseMode) []string {
	switch t := t.(type) {
	case Literal:
		return dedup(mode.permute(t.Text))
	case Whitespace:
		return append([]string(nil), Separators...)
	case OptionSet:
		var all []string
		for _, o := range t.Options {
			all = append(all, mode.permute(o)...)
		}
		return dedup(all)
	default:
		panic(fmt.Sprintf("pattern: unknown token %T", t))
	}
}

// Count returns the number of candidates p expands to. ok is false when the
// count does not fit in a uint64.
func Count(p Pattern, mode CaseMode) (n uint64, ok bool) {
	if len(p) == 0 {
		return 0, true
	}
	n = 1
	for _, t := range p {
		hi, lo := bits.Mul64(n, uint64(len(Expand(t, mode))))
		if hi != 0 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// Generate materializes every candidate of p, first token varying slowest.
// Memory grows with the full product; prefer Iterator for large patterns.
func Generate(p Pattern, mode CaseMode) []string {
	if len(p) == 0 {
		return nil
	}
	return cross(Expand(p[0], mode), p[1:], mode)
}

func cross(head []string, rest Pattern, mode CaseMode) []string {
	if len(rest) == 0 {
		return head
	}
	tail := cross(Expand(rest[0], mode), rest[1:], mode)
	out := make([]string, 0, len(head)*len(tail))
	for _, h := range head {
		for _, t := range tail {
			out = append(out, h+t)
		}
	}
	return out
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func upper(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
