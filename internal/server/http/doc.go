// Package httpserver provides a small operator-facing REST gateway for
// rescue: health, namespaces, queue stats and winners, bulk candidate
// insert and the Prometheus scrape endpoint.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := httpserver.New(rt, logger, prometheus.DefaultGatherer)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
