package pattern

import "strings"

// Iterator walks the candidates of a pattern lazily, in the same order as
// Generate. Only the per-token expansions are held in memory.
//
//	it := NewIterator(p, CaseAll)
//	for it.Next() {
//	    use(it.Candidate())
//	}
type Iterator struct {
	sets    [][]string
	idx     []int
	started bool
	done    bool
	buf     strings.Builder
}

// NewIterator prepares an iterator over p.
func NewIterator(p Pattern, mode CaseMode) *Iterator {
	it := &Iterator{sets: make([][]string, len(p)), idx: make([]int, len(p))}
	for i, t := range p {
		it.sets[i] = Expand(t, mode)
	}
	it.done = len(p) == 0
	return it
}

// Next advances to the next candidate and reports whether one exists.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		return true
	}
	// odometer: last token turns fastest
	for i := len(it.idx) - 1; i >= 0; i-- {
		it.idx[i]++
		if it.idx[i] < len(it.sets[i]) {
			return true
		}
		it.idx[i] = 0
	}
	it.done = true
	return false
}

// Candidate returns the current candidate. Valid after Next returned true.
func (it *Iterator) Candidate() string {
	it.buf.Reset()
	for i, j := range it.idx {
		it.buf.WriteString(it.sets[i][j])
	}
	return it.buf.String()
}

// Reset rewinds the iterator to before the first candidate.
func (it *Iterator) Reset() {
	for i := range it.idx {
		it.idx[i] = 0
	}
	it.started = false
	it.done = len(it.sets) == 0
}

// Count is the total number of candidates the iterator yields; ok is false
// on overflow.
func (it *Iterator) Count() (n uint64, ok bool) {
	if len(it.sets) == 0 {
		return 0, true
	}
	n = 1
	for _, s := range it.sets {
		if len(s) != 0 && n > ^uint64(0)/uint64(len(s)) {
			return 0, false
		}
		n *= uint64(len(s))
	}
	return n, true
}
