package grpcserver

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	rescuev1 "github.com/MrMoose/rescue/api/rescue/v1"
	"github.com/MrMoose/rescue/internal/namespace"
	"github.com/MrMoose/rescue/internal/runtime"
	"github.com/MrMoose/rescue/internal/workqueue"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

// CodeTrailer carries the script code of a protocol error.
const CodeTrailer = "rescue-code"

type queueSvc struct {
	rescuev1.UnimplementedQueueServiceServer
	rt     *runtime.Runtime
	logger logpkg.Logger
}

func (s *queueSvc) Insert(ctx context.Context, req *rescuev1.InsertRequest) (*rescuev1.InsertResponse, error) {
	q, err := s.rt.Queue(ctx, req.Namespace)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	res, err := q.Insert(ctx, req.Candidate)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rescuev1.InsertResponse{Code: insertCode(res), Result: res.String()}, nil
}

func (s *queueSvc) Poll(ctx context.Context, req *rescuev1.PollRequest) (*rescuev1.PollResponse, error) {
	q, err := s.rt.Queue(ctx, req.Namespace)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	res, err := q.Poll(ctx, req.Hint)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if !res.Found {
		return &rescuev1.PollResponse{Code: -1}, nil
	}
	return &rescuev1.PollResponse{Found: true, Candidate: res.Candidate}, nil
}

func (s *queueSvc) Return(ctx context.Context, req *rescuev1.ReturnRequest) (*rescuev1.ReturnResponse, error) {
	q, err := s.rt.Queue(ctx, req.Namespace)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	res, err := q.Return(ctx, req.Candidate, req.Succeeded)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	code := int32(0)
	if res == workqueue.LeaseNotFound {
		code = -1
	}
	return &rescuev1.ReturnResponse{Code: code, Result: res.String()}, nil
}

func (s *queueSvc) Solved(ctx context.Context, req *rescuev1.SolvedRequest) (*rescuev1.SolvedResponse, error) {
	q, err := s.rt.Queue(ctx, req.Namespace)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	ok, err := q.Solved(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rescuev1.SolvedResponse{Solved: ok}, nil
}

func (s *queueSvc) Winners(ctx context.Context, req *rescuev1.WinnersRequest) (*rescuev1.WinnersResponse, error) {
	q, err := s.rt.Queue(ctx, req.Namespace)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	w, err := q.Winners(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rescuev1.WinnersResponse{Candidates: w}, nil
}

func (s *queueSvc) Stats(ctx context.Context, req *rescuev1.StatsRequest) (*rescuev1.StatsResponse, error) {
	q, err := s.rt.Queue(ctx, req.Namespace)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	st, err := q.Stats(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rescuev1.StatsResponse{
		Candidates: int64(st.Candidates),
		Pending:    int64(st.Pending),
		Leased:     int64(st.Leased),
		Succeeded:  int64(st.Succeeded),
		Failed:     int64(st.Failed),
	}, nil
}

func insertCode(r workqueue.InsertResult) int32 {
	if r == workqueue.AlreadyKnown {
		return -1
	}
	return 0
}

// toStatus maps queue and namespace errors onto gRPC codes. Protocol errors
// also set the script code trailer.
func (s *queueSvc) toStatus(ctx context.Context, err error) error {
	var pe *workqueue.ProtocolError
	switch {
	case errors.As(err, &pe):
		_ = grpc.SetTrailer(ctx, metadata.Pairs(CodeTrailer, strconv.Itoa(pe.Code)))
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, workqueue.ErrEmptyCandidate), errors.Is(err, namespace.ErrInvalidName):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, namespace.ErrNotAllowed):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, namespace.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, namespace.ErrLimit):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		s.logger.Warn("queue operation failed", logpkg.Err(err))
		return status.Error(codes.Unavailable, err.Error())
	}
}
