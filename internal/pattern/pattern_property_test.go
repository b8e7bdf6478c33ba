//go:build property
// +build property

package pattern

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestGeneratorProperties checks the case permutation law and the agreement
// between the materializing and streaming generators.
func TestGeneratorProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: 2^len entries, bit k of the index selects upper case at k
	properties.Property("case permutation law", prop.ForAll(
		func(s string) bool {
			perms := CasePermutations(s)
			if len(perms) != 1<<len(s) {
				return false
			}
			for i, p := range perms {
				for k := 0; k < len(s); k++ {
					want := lower(s[k])
					if i&(1<<k) != 0 {
						want = upper(s[k])
					}
					if p[k] != want {
						return false
					}
				}
			}
			return true
		},
		gen.RegexMatch(`^[a-zA-Z0-9!?]{0,8}$`),
	))

	// Property: Count agrees with the number of generated candidates
	properties.Property("count matches generate", prop.ForAll(
		func(src string) bool {
			p, err := Parse(src)
			if err != nil {
				return true
			}
			n, ok := Count(p, CaseAll)
			return ok && n == uint64(len(Generate(p, CaseAll)))
		},
		gen.RegexMatch(`^[a-c1]{1,3}( [a-b]{1,2})?( \[[a-c]{1,2}\|[1-2]\])?$`),
	))

	properties.TestingRun(t)
}
