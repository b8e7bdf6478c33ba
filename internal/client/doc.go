// Package client gives producers and workers a workqueue.Backend for a
// remote queue. A plain host:port reaches a coordination server over gRPC;
// a nats:// URL selects the JetStream backend.
//
// Example:
//
//	q, closer, err := client.Open(ctx, "127.0.0.1:50051", client.Options{Namespace: "default"})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	res, _ := q.Poll(ctx, workerID)
package client
