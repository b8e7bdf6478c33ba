package producer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrMoose/rescue/internal/pattern"
	"github.com/MrMoose/rescue/internal/store/memstore"
	"github.com/MrMoose/rescue/internal/workqueue"
)

func newQueue() *workqueue.Queue {
	return workqueue.New(memstore.New(), "test", workqueue.Options{})
}

func TestRunReportsPerLine(t *testing.T) {
	q := newQueue()
	var reports []LineReport
	p := New(q, Options{OnLine: func(r LineReport) { reports = append(reports, r) }})
	input := "# candidates\n\nHi [wo|rl]!\nabc\nabc\n[broken\n"
	sum, err := p.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, reports, 4)
	require.Equal(t, 3, reports[0].Line)
	require.Equal(t, uint64(192), reports[0].Generated)
	require.Equal(t, uint64(192), reports[0].Inserted)
	require.Equal(t, uint64(8), reports[1].Inserted)
	require.Equal(t, uint64(8), reports[2].AlreadyKnown)
	require.Zero(t, reports[2].Inserted)
	var pe *pattern.ParseError
	require.True(t, errors.As(reports[3].Err, &pe))

	require.Equal(t, 4, sum.Lines)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, uint64(200), sum.Inserted)
	st, err := q.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 200, st.Pending)
}

func TestSuffixVariants(t *testing.T) {
	q := newQueue()
	p := New(q, Options{Suffixes: []string{"Master [1|2]"}, CaseMode: pattern.CaseFirst})
	rep := p.Line(context.Background(), 1, "ab")
	require.NoError(t, rep.Err)
	// "ab" in first-letter mode: Ab, ab. With suffix: 2 * 6 separators *
	// 2 ("Master"/"master") * 6 separators * 2 options = 288.
	require.Equal(t, uint64(2+288), rep.Generated)
	require.Equal(t, uint64(290), rep.Inserted)
}

func TestFilter(t *testing.T) {
	f, err := NewFilter(`length >= 3 && !candidate.startsWith("A")`)
	require.NoError(t, err)
	require.True(t, f.Enabled())
	q := newQueue()
	p := New(q, Options{Filter: f})
	rep := p.Line(context.Background(), 1, "abc")
	require.NoError(t, rep.Err)
	require.Equal(t, uint64(8), rep.Generated)
	require.Equal(t, uint64(4), rep.Filtered)
	require.Equal(t, uint64(4), rep.Inserted)

	_, err = NewFilter("length >")
	require.Error(t, err)
	_, err = NewFilter("unknown_var == 1")
	require.Error(t, err)

	off, err := NewFilter("  ")
	require.NoError(t, err)
	require.False(t, off.Enabled())
	require.True(t, off.Eval("x", "x", 1))
}

func TestMaxCandidates(t *testing.T) {
	q := newQueue()
	p := New(q, Options{MaxCandidates: 100, Suffixes: []string{"Master"}})
	rep := p.Line(context.Background(), 1, "abcd")
	// "abcd" alone has 16 candidates; with the suffix it has 16*6*64.
	require.NoError(t, rep.Err)
	require.Equal(t, 1, rep.Skipped)
	require.Equal(t, uint64(16), rep.Inserted)

	p = New(q, Options{MaxCandidates: 10})
	rep = p.Line(context.Background(), 2, "abcdefgh")
	require.ErrorIs(t, rep.Err, ErrTooManyCandidates)
	require.Zero(t, rep.Generated)
}

func TestRunStopsWhenSolved(t *testing.T) {
	q := newQueue()
	ctx := context.Background()
	_, err := q.Insert(ctx, "seed")
	require.NoError(t, err)
	r, err := q.Poll(ctx, "")
	require.NoError(t, err)
	_, err = q.Return(ctx, r.Candidate, true)
	require.NoError(t, err)

	p := New(q, Options{})
	sum, err := p.Run(ctx, strings.NewReader("abc\ndef\n"))
	require.NoError(t, err)
	require.True(t, sum.Solved)
	require.Zero(t, sum.Lines)
}

type failingBackend struct{ workqueue.Backend }

func (failingBackend) Insert(context.Context, string) (workqueue.InsertResult, error) {
	return workqueue.Inserted, workqueue.ErrStoreUnavailable
}

func TestStoreErrorAbortsLineOnly(t *testing.T) {
	p := New(failingBackend{newQueue()}, Options{})
	sum, err := p.Run(context.Background(), strings.NewReader("abc\ndef\n"))
	require.NoError(t, err)
	require.Equal(t, 2, sum.Lines)
	require.Equal(t, 2, sum.Failed)
	require.Equal(t, uint64(2), sum.Generated)
}
