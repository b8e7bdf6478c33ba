package producer

import (
	"strings"

	"github.com/google/cel-go/cel"
)

// Filter wraps a compiled CEL program deciding which candidates are queued.
// When disabled, Eval always returns true.
//
// Variables: candidate (string), length (int), pattern (string, the
// expanded pattern line) and line (int, 1-based line number).
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles expr; an empty expression disables the filter.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("candidate", cel.StringType),
		cel.Variable("length", cel.IntType),
		cel.Variable("pattern", cel.StringType),
		cel.Variable("line", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Enabled reports whether an expression was compiled.
func (f Filter) Enabled() bool { return f.enabled }

// Eval evaluates the expression for one candidate. Evaluation errors and
// non-boolean results reject the candidate.
func (f Filter) Eval(candidate, pattern string, line int) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"candidate": candidate,
		"length":    int64(len(candidate)),
		"pattern":   pattern,
		"line":      int64(line),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
