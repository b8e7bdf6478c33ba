package client

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	rescuev1 "github.com/MrMoose/rescue/api/rescue/v1"
	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/natsqueue"
	"github.com/MrMoose/rescue/internal/workqueue"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

// DefaultAddr is the coordination server address used when none is given.
const DefaultAddr = "127.0.0.1:50051"

// Options configures Open.
type Options struct {
	Namespace string
	// LeaseTTL, Key and ScanBatch only apply to the JetStream backend; a
	// coordination server uses its own configuration.
	LeaseTTL  time.Duration
	Key       string
	ScanBatch int
	Logger   logpkg.Logger
	Metrics  metrics.Collector
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open returns the backend for addr and a closer releasing its connection.
func Open(ctx context.Context, addr string, opts Options) (workqueue.Backend, io.Closer, error) {
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if addr == "" {
		addr = DefaultAddr
	}
	if strings.HasPrefix(addr, "nats://") || strings.HasPrefix(addr, "tls://") {
		return openNATS(ctx, addr, opts)
	}
	conn, err := Dial(addr)
	if err != nil {
		return nil, nil, err
	}
	return NewRemote(conn, opts.Namespace), conn, nil
}

// Dial connects to a coordination server with insecure transport for
// local and trusted networks.
func Dial(addr string, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, rescuev1.DialOptions()...)
	return grpc.NewClient(addr, append(opts, extra...)...)
}

func openNATS(ctx context.Context, url string, opts Options) (workqueue.Backend, io.Closer, error) {
	nc, err := nats.Connect(url, nats.Name("rescue"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	q, err := natsqueue.New(ctx, js, opts.Namespace, natsqueue.Options{
		LeaseTTL:  opts.LeaseTTL,
		Key:       opts.Key,
		ScanBatch: opts.ScanBatch,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return q, closerFunc(func() error { nc.Close(); return nil }), nil
}
