// Package runtime wires storage, config, and queues into a single
// coordination server. It opens the configured engine (Pebble or SQLite),
// runs the expiry sweeper, enforces namespace policy and hands out one
// work queue per namespace.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	q, _ := rt.Queue(context.Background(), "default")
//	_, _ = q.Insert(context.Background(), "Hi world!")
package runtime
