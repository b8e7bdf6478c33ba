package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	rescuev1 "github.com/MrMoose/rescue/api/rescue/v1"
	cfgpkg "github.com/MrMoose/rescue/internal/config"
	"github.com/MrMoose/rescue/internal/runtime"
	pebblestore "github.com/MrMoose/rescue/internal/storage/pebble"
	"github.com/MrMoose/rescue/internal/store"
	"github.com/MrMoose/rescue/internal/workqueue"
)

const bufSize = 1 << 20

func dialer(s *grpc.Server) func(context.Context, string) (net.Conn, error) {
	lis := bufconn.Listen(bufSize)
	go func() { _ = s.Serve(lis) }()
	return func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
}

func setup(t *testing.T) (*runtime.Runtime, *grpc.ClientConn, context.Context) {
	t.Helper()
	dir := t.TempDir()
	rt, err := runtime.Open(runtime.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	srv := New(rt)
	d := dialer(srv.grpc)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	opts := append([]grpc.DialOption{grpc.WithContextDialer(d), grpc.WithInsecure()}, rescuev1.DialOptions()...)
	conn, err := grpc.DialContext(ctx, "bufnet", opts...)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = conn.Close()
		srv.Close()
		_ = rt.Close()
	})
	return rt, conn, ctx
}

func TestHealthOverGRPC(t *testing.T) {
	_, conn, ctx := setup(t)
	c := healthpb.NewHealthClient(conn)
	res, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status %v", res.GetStatus())
	}
	res, err = c.Check(ctx, &healthpb.HealthCheckRequest{Service: rescuev1.ServiceName})
	if err != nil || res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("named check: %v %v", res, err)
	}
}

func TestQueueOverGRPC(t *testing.T) {
	_, conn, ctx := setup(t)
	c := rescuev1.NewQueueServiceClient(conn)

	ins, err := c.Insert(ctx, &rescuev1.InsertRequest{Namespace: "default", Candidate: "Hi world!"})
	if err != nil || ins.Code != 0 || ins.Result != "inserted" {
		t.Fatalf("insert: %+v %v", ins, err)
	}
	ins, err = c.Insert(ctx, &rescuev1.InsertRequest{Namespace: "default", Candidate: "Hi world!"})
	if err != nil || ins.Code != -1 {
		t.Fatalf("second insert: %+v %v", ins, err)
	}

	p, err := c.Poll(ctx, &rescuev1.PollRequest{Namespace: "default", Hint: "w1"})
	if err != nil || !p.Found || p.Candidate != "Hi world!" {
		t.Fatalf("poll: %+v %v", p, err)
	}
	p, err = c.Poll(ctx, &rescuev1.PollRequest{Namespace: "default", Hint: "w2"})
	if err != nil || p.Found || p.Code != -1 {
		t.Fatalf("poll while leased: %+v %v", p, err)
	}

	ret, err := c.Return(ctx, &rescuev1.ReturnRequest{Namespace: "default", Candidate: "Hi world!", Succeeded: true})
	if err != nil || ret.Code != 0 {
		t.Fatalf("return: %+v %v", ret, err)
	}
	ret, err = c.Return(ctx, &rescuev1.ReturnRequest{Namespace: "default", Candidate: "Hi world!", Succeeded: true})
	if err != nil || ret.Code != -1 || ret.Result != "lease_not_found" {
		t.Fatalf("second return: %+v %v", ret, err)
	}

	sv, err := c.Solved(ctx, &rescuev1.SolvedRequest{Namespace: "default"})
	if err != nil || !sv.Solved {
		t.Fatalf("solved: %+v %v", sv, err)
	}
	w, err := c.Winners(ctx, &rescuev1.WinnersRequest{Namespace: "default"})
	if err != nil || len(w.Candidates) != 1 || w.Candidates[0] != "Hi world!" {
		t.Fatalf("winners: %+v %v", w, err)
	}
	st, err := c.Stats(ctx, &rescuev1.StatsRequest{Namespace: "default"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Candidates != 1 || st.Succeeded != 1 || st.Pending != 0 || st.Leased != 0 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestErrorMapping(t *testing.T) {
	rt, conn, ctx := setup(t)
	c := rescuev1.NewQueueServiceClient(conn)

	_, err := c.Insert(ctx, &rescuev1.InsertRequest{Namespace: "default"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("empty candidate: %v", err)
	}
	_, err = c.Insert(ctx, &rescuev1.InsertRequest{Namespace: "Not Valid", Candidate: "x"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad namespace: %v", err)
	}

	// a pending digest without candidate text breaks the queue contract
	if _, err := rt.Queue(ctx, "default"); err != nil {
		t.Fatalf("queue: %v", err)
	}
	keys := workqueue.NewKeys("default")
	err = rt.Store().Update(ctx, func(tx store.Txn) error {
		_, err := tx.SAdd(keys.Pending(), "00deadbeef")
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	var md metadata.MD
	_, err = c.Poll(ctx, &rescuev1.PollRequest{Namespace: "default"}, grpc.Trailer(&md))
	if status.Code(err) != codes.Internal {
		t.Fatalf("protocol error: %v", err)
	}
	if got := md.Get(CodeTrailer); len(got) != 1 || got[0] != "-2" {
		t.Fatalf("trailer: %v", md)
	}
}
