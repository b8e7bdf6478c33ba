// Package pattern parses compact passphrase patterns and expands them into
// candidate strings.
//
// A pattern is a line such as
//
//	Hi [wo|rl]!
//
// made of three kinds of tokens: runs of plain text (case-permuted), single
// spaces (expanded to a fixed set of separators) and bracketed option lists
// (one of several alternatives, each case-permuted). The candidate set is
// the ordered cross product of every token's local expansion with the first
// token varying slowest.
//
// Example:
//
//	p, err := pattern.Parse("Hi [wo|rl]!")
//	if err != nil { /* *pattern.ParseError */ }
//	n, _ := pattern.Count(p, pattern.CaseAll) // 192
//	it := pattern.NewIterator(p, pattern.CaseAll)
//	for it.Next() {
//	    fmt.Println(it.Candidate())
//	}
package pattern
