package workqueue

import (
	"context"
	"errors"
	"fmt"
)

// Script codes. Anything else coming back from a script is a protocol error.
const (
	codeOK    = 0
	codeKnown = -1
	// codeMissingText is yielded when a pending or leased digest has no
	// candidate text. It is outside the contract on purpose.
	codeMissingText = -2
)

// InsertResult is the outcome of Insert.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyKnown
)

func (r InsertResult) String() string {
	if r == AlreadyKnown {
		return "already_known"
	}
	return "inserted"
}

// ReturnResult is the outcome of Return.
type ReturnResult int

const (
	ReturnOK ReturnResult = iota
	// LeaseNotFound means the lease had expired or never existed. The
	// outcome was still recorded when it was a success.
	LeaseNotFound
)

func (r ReturnResult) String() string {
	if r == LeaseNotFound {
		return "lease_not_found"
	}
	return "ok"
}

// PollResult is the outcome of Poll. Found is false when no pending
// candidate could be leased, which is not an error.
type PollResult struct {
	Candidate string
	Found     bool
}

// Stats is a point-in-time view of a queue.
type Stats struct {
	Candidates int `json:"candidates"`
	Pending    int `json:"pending"`
	Leased     int `json:"leased"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// Backend is the queue protocol as seen by producers and workers. It is
// implemented by Queue, by the JetStream queue and by the remote client.
type Backend interface {
	Insert(ctx context.Context, candidate string) (InsertResult, error)
	Poll(ctx context.Context, hint string) (PollResult, error)
	Return(ctx context.Context, candidate string, succeeded bool) (ReturnResult, error)
	Solved(ctx context.Context) (bool, error)
	Winners(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
}

var (
	// ErrEmptyCandidate rejects inserting or returning an empty string.
	ErrEmptyCandidate = errors.New("workqueue: empty candidate")
	// ErrInternalProtocol matches every *ProtocolError.
	ErrInternalProtocol = errors.New("workqueue: internal protocol error")
	// ErrStoreUnavailable wraps transport and store failures. Callers retry
	// on their next cycle.
	ErrStoreUnavailable = errors.New("workqueue: store unavailable")
)

// ProtocolError reports a script reply outside the {0, -1} contract.
type ProtocolError struct {
	Op   string
	Code int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("workqueue: %s: unexpected script code %d", e.Op, e.Code)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrInternalProtocol }

// CheckCode validates a script reply. Remote clients use it to re-check
// the code carried in a response.
func CheckCode(op string, code int) error {
	if code == codeOK || code == codeKnown {
		return nil
	}
	return &ProtocolError{Op: op, Code: code}
}

// storeError wraps a failure from the store. Context errors pass through
// unchanged so callers can tell a timeout from an outage.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProtocolError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &pe) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
