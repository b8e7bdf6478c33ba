// Package client provides the rescue command-line client commands.
//
// # Address configuration
//
// Every command that talks to a queue takes --server, falling back to the
// RESCUE_SERVER environment variable and then 127.0.0.1:50051. A nats://
// or tls:// URL selects the JetStream backend instead of a coordination
// server.
//
// Usage
//
//	# print how many candidates a pattern yields, then the first few
//	rescue expand 'Hi [wo|rl]!' --limit 5
//
//	# queue every candidate of a pattern file
//	rescue produce --file patterns.txt --suffix '[1|2|3]' --case all
//	rescue produce --file patterns.txt --filter 'length >= 8'
//
//	# verify candidates against a LUKS header with 8 workers
//	rescue consume --resource /dev/sdb2 --workers 8
//	rescue consume --resource hash.txt --verifier digest --metrics :9100
//
//	rescue status
package client
