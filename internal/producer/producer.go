// Package producer turns a file of pattern lines into queued candidates.
//
// Each line is expanded as written and once more per configured suffix
// (line + " " + suffix). Candidates stream through an optional CEL filter
// into the queue; a line is never materialized in full.
package producer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrMoose/rescue/internal/pattern"
	"github.com/MrMoose/rescue/internal/workqueue"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

const (
	// DefaultMaxCandidates bounds the expansion of a single pattern.
	DefaultMaxCandidates = 50_000_000
	// solvedCheckEvery is the number of inserts between Solved checks.
	solvedCheckEvery = 4096
	maxLineBytes     = 1 << 20
)

// ErrTooManyCandidates rejects a pattern whose expansion exceeds MaxCandidates.
var ErrTooManyCandidates = errors.New("producer: pattern expands to too many candidates")

// Options configures a Producer.
type Options struct {
	Suffixes      []string
	Filter        Filter
	CaseMode      pattern.CaseMode
	MaxCandidates uint64
	// OnLine receives the report of every processed line.
	OnLine func(LineReport)
	Logger logpkg.Logger
}

// LineReport is the outcome of one input line across all its variants.
type LineReport struct {
	Line         int
	Text         string
	Generated    uint64
	Inserted     uint64
	AlreadyKnown uint64
	Filtered     uint64
	// Skipped counts variants rejected for their size.
	Skipped int
	Err     error
}

// Summary totals a Run.
type Summary struct {
	Lines        int
	Generated    uint64
	Inserted     uint64
	AlreadyKnown uint64
	Filtered     uint64
	Failed       int
	// Solved is set when the run stopped because the queue was solved.
	Solved bool
}

// Producer inserts expanded candidates into a queue.
type Producer struct {
	queue  workqueue.Backend
	opts   Options
	logger logpkg.Logger
}

func New(q workqueue.Backend, opts Options) *Producer {
	if opts.MaxCandidates == 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	return &Producer{queue: q, opts: opts, logger: opts.Logger.WithComponent("producer")}
}

// ErrSolved is reported on the line during which the queue was solved.
var ErrSolved = errors.New("producer: queue solved")

// Run reads pattern lines from r until EOF, ctx ends or the queue is
// solved. Blank lines and lines starting with '#' are skipped. Errors of
// one line are reported and do not stop the run.
func (p *Producer) Run(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if solved, err := p.queue.Solved(ctx); err == nil && solved {
			p.logger.Info("queue already solved, stopping")
			sum.Solved = true
			return sum, nil
		}
		rep := p.Line(ctx, n, text)
		sum.Lines++
		sum.Generated += rep.Generated
		sum.Inserted += rep.Inserted
		sum.AlreadyKnown += rep.AlreadyKnown
		sum.Filtered += rep.Filtered
		if p.opts.OnLine != nil {
			p.opts.OnLine(rep)
		}
		switch {
		case errors.Is(rep.Err, ErrSolved):
			sum.Solved = true
			return sum, nil
		case rep.Err != nil && ctx.Err() != nil:
			return sum, ctx.Err()
		case rep.Err != nil:
			sum.Failed++
		}
	}
	if err := sc.Err(); err != nil {
		return sum, fmt.Errorf("producer: read: %w", err)
	}
	return sum, nil
}

// Line expands and inserts a single pattern line with all its suffix
// variants. The first parse or store error aborts the line.
func (p *Producer) Line(ctx context.Context, n int, text string) LineReport {
	rep := LineReport{Line: n, Text: text}
	variants := []string{text}
	for _, s := range p.opts.Suffixes {
		variants = append(variants, text+" "+s)
	}
	log := p.logger.With(logpkg.Int("line", n))
	for _, v := range variants {
		pat, err := pattern.Parse(v)
		if err != nil {
			rep.Err = err
			log.Warn("pattern rejected", logpkg.Err(err))
			return rep
		}
		it := pattern.NewIterator(pat, p.opts.CaseMode)
		count, ok := it.Count()
		if !ok || count > p.opts.MaxCandidates {
			rep.Skipped++
			log.Warn("pattern skipped", logpkg.Secret("pattern", v), logpkg.Uint64("count", count), logpkg.Bool("overflow", !ok))
			if len(variants) == 1 {
				rep.Err = fmt.Errorf("%w: %q", ErrTooManyCandidates, v)
			}
			continue
		}
		log.Debug("expanding", logpkg.Secret("pattern", v), logpkg.Uint64("count", count))
		if err := p.insertAll(ctx, it, v, n, &rep); err != nil {
			rep.Err = err
			if !errors.Is(err, ErrSolved) {
				log.Warn("line aborted", logpkg.Err(err))
			}
			return rep
		}
	}
	return rep
}

func (p *Producer) insertAll(ctx context.Context, it *pattern.Iterator, pat string, n int, rep *LineReport) error {
	since := 0
	for it.Next() {
		c := it.Candidate()
		rep.Generated++
		if !p.opts.Filter.Eval(c, pat, n) {
			rep.Filtered++
			continue
		}
		res, err := p.queue.Insert(ctx, c)
		if err != nil {
			return err
		}
		if res == workqueue.AlreadyKnown {
			rep.AlreadyKnown++
		} else {
			rep.Inserted++
		}
		if since++; since >= solvedCheckEvery {
			since = 0
			if solved, err := p.queue.Solved(ctx); err == nil && solved {
				return ErrSolved
			}
		}
	}
	return nil
}
