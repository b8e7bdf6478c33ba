package runtime

import (
	"context"
	"errors"
	"testing"

	cfgpkg "github.com/MrMoose/rescue/internal/config"
	"github.com/MrMoose/rescue/internal/namespace"
	pebblestore "github.com/MrMoose/rescue/internal/storage/pebble"
	"github.com/MrMoose/rescue/internal/workqueue"
)

func openRuntime(t *testing.T, engine string) *Runtime {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Engine = engine
	rt, err := Open(Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestOpenCloseHealth(t *testing.T) {
	for _, engine := range []string{cfgpkg.EnginePebble, cfgpkg.EngineSQLite, cfgpkg.EngineMemory} {
		t.Run(engine, func(t *testing.T) {
			rt := openRuntime(t, engine)
			if err := rt.CheckHealth(context.Background()); err != nil {
				t.Fatalf("health: %v", err)
			}
		})
	}
}

func TestQueueRoundTrip(t *testing.T) {
	for _, engine := range []string{cfgpkg.EnginePebble, cfgpkg.EngineSQLite, cfgpkg.EngineMemory} {
		t.Run(engine, func(t *testing.T) {
			rt := openRuntime(t, engine)
			ctx := context.Background()
			q, err := rt.Queue(ctx, "")
			if err != nil {
				t.Fatalf("queue: %v", err)
			}
			if q.Namespace() != "default" {
				t.Fatalf("default namespace: %s", q.Namespace())
			}
			again, err := rt.Queue(ctx, "default")
			if err != nil || again != q {
				t.Fatalf("queue must be cached: %v", err)
			}
			if res, err := q.Insert(ctx, "Hi world!"); err != nil || res != workqueue.Inserted {
				t.Fatalf("insert: %v %v", res, err)
			}
			p, err := q.Poll(ctx, "w")
			if err != nil || !p.Found || p.Candidate != "Hi world!" {
				t.Fatalf("poll: %+v %v", p, err)
			}
			names, err := rt.Namespaces(ctx)
			if err != nil || len(names) != 1 {
				t.Fatalf("namespaces: %q %v", names, err)
			}
		})
	}
}

func TestNamespacePolicy(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.AllowedNamespaces = []string{"default", "luks"}
	rt, err := Open(Options{DataDir: t.TempDir(), Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	if _, err := rt.Queue(context.Background(), "luks"); err != nil {
		t.Fatalf("allowed: %v", err)
	}
	if _, err := rt.Queue(context.Background(), "other"); !errors.Is(err, namespace.ErrNotAllowed) {
		t.Fatalf("want not allowed, got %v", err)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Engine = "redis"
	if _, err := Open(Options{DataDir: t.TempDir(), Config: cfg}); err == nil {
		t.Fatalf("expected config error")
	}
}
