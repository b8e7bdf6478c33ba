package client

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	rescuev1 "github.com/MrMoose/rescue/api/rescue/v1"
	"github.com/MrMoose/rescue/internal/workqueue"
)

// codeTrailer mirrors the server's protocol error trailer.
const codeTrailer = "rescue-code"

// Remote is a workqueue.Backend backed by rescue.v1.QueueService.
type Remote struct {
	cli rescuev1.QueueServiceClient
	ns  string
}

var _ workqueue.Backend = (*Remote)(nil)

// NewRemote wraps an established connection.
func NewRemote(cc grpc.ClientConnInterface, namespace string) *Remote {
	return &Remote{cli: rescuev1.NewQueueServiceClient(cc), ns: namespace}
}

func (r *Remote) Insert(ctx context.Context, c string) (workqueue.InsertResult, error) {
	var md metadata.MD
	resp, err := r.cli.Insert(ctx, &rescuev1.InsertRequest{Namespace: r.ns, Candidate: c}, grpc.Trailer(&md))
	if err != nil {
		return workqueue.Inserted, fromStatus("insert", err, md)
	}
	if err := workqueue.CheckCode("insert", int(resp.Code)); err != nil {
		return workqueue.Inserted, err
	}
	if resp.Code != 0 {
		return workqueue.AlreadyKnown, nil
	}
	return workqueue.Inserted, nil
}

func (r *Remote) Poll(ctx context.Context, hint string) (workqueue.PollResult, error) {
	var md metadata.MD
	resp, err := r.cli.Poll(ctx, &rescuev1.PollRequest{Namespace: r.ns, Hint: hint}, grpc.Trailer(&md))
	if err != nil {
		return workqueue.PollResult{}, fromStatus("poll", err, md)
	}
	if err := workqueue.CheckCode("poll", int(resp.Code)); err != nil {
		return workqueue.PollResult{}, err
	}
	if !resp.Found {
		return workqueue.PollResult{}, nil
	}
	return workqueue.PollResult{Candidate: resp.Candidate, Found: true}, nil
}

func (r *Remote) Return(ctx context.Context, c string, succeeded bool) (workqueue.ReturnResult, error) {
	var md metadata.MD
	resp, err := r.cli.Return(ctx, &rescuev1.ReturnRequest{Namespace: r.ns, Candidate: c, Succeeded: succeeded}, grpc.Trailer(&md))
	if err != nil {
		return workqueue.ReturnOK, fromStatus("return", err, md)
	}
	if err := workqueue.CheckCode("return", int(resp.Code)); err != nil {
		return workqueue.ReturnOK, err
	}
	if resp.Code != 0 {
		return workqueue.LeaseNotFound, nil
	}
	return workqueue.ReturnOK, nil
}

func (r *Remote) Solved(ctx context.Context) (bool, error) {
	var md metadata.MD
	resp, err := r.cli.Solved(ctx, &rescuev1.SolvedRequest{Namespace: r.ns}, grpc.Trailer(&md))
	if err != nil {
		return false, fromStatus("solved", err, md)
	}
	return resp.Solved, nil
}

func (r *Remote) Winners(ctx context.Context) ([]string, error) {
	var md metadata.MD
	resp, err := r.cli.Winners(ctx, &rescuev1.WinnersRequest{Namespace: r.ns}, grpc.Trailer(&md))
	if err != nil {
		return nil, fromStatus("winners", err, md)
	}
	return resp.Candidates, nil
}

func (r *Remote) Stats(ctx context.Context) (workqueue.Stats, error) {
	var md metadata.MD
	resp, err := r.cli.Stats(ctx, &rescuev1.StatsRequest{Namespace: r.ns}, grpc.Trailer(&md))
	if err != nil {
		return workqueue.Stats{}, fromStatus("stats", err, md)
	}
	return workqueue.Stats{
		Candidates: int(resp.Candidates),
		Pending:    int(resp.Pending),
		Leased:     int(resp.Leased),
		Succeeded:  int(resp.Succeeded),
		Failed:     int(resp.Failed),
	}, nil
}

// fromStatus turns a gRPC error back into the queue's error values.
func fromStatus(op string, err error, md metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w: %w", op, workqueue.ErrStoreUnavailable, err)
	}
	switch st.Code() {
	case codes.Internal:
		if v := md.Get(codeTrailer); len(v) > 0 {
			if code, perr := strconv.Atoi(v[0]); perr == nil {
				return &workqueue.ProtocolError{Op: op, Code: code}
			}
		}
		return fmt.Errorf("%s: %w: %s", op, workqueue.ErrStoreUnavailable, st.Message())
	case codes.InvalidArgument:
		if st.Message() == workqueue.ErrEmptyCandidate.Error() {
			return workqueue.ErrEmptyCandidate
		}
		return fmt.Errorf("%s: %s", op, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("%s: %w", op, context.Canceled)
	case codes.PermissionDenied, codes.NotFound, codes.ResourceExhausted:
		return fmt.Errorf("%s: %s", op, st.Message())
	default:
		return fmt.Errorf("%s: %w: %s", op, workqueue.ErrStoreUnavailable, st.Message())
	}
}
