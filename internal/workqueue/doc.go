// Package workqueue implements the candidate queue: a lease-based one-of-N
// queue where every candidate is handed to exactly one worker at a time and
// reconciled when workers crash or stall.
//
// Every operation runs as a short transaction script against a
// store.Store. The store serializes transactions, so no in-process lock
// is needed for correctness:
//
// - Insert: deduplicate by digest, record the obfuscated text, mark pending
// - Poll: find a pending digest without a live lease and lease it
// - Return: drop the lease, leave pending, record success or failure
//
// # Keyspace
//
// All keys are prefixed with ns/{namespace}/rsc/:
//
//	passwords          - hash: digest -> obfuscated candidate text
//	candidates         - set: pending digests
//	lease/{digest}     - single key with TTL: obfuscated text of a leased candidate
//	success            - set: digests reported as matching
//	failed             - set: digests reported as not matching
//
// # Lifecycle
//
//  1. Insert: Unknown -> Pending (AlreadyKnown if the digest was ever seen)
//  2. Poll: Pending -> Leased (lease expires after LeaseTTL)
//  3. Return: Leased -> Succeeded | Failed, removed from pending
//  4. Expiry: the lease key disappears, the digest is still pending and
//     the next Poll can lease it again
//
// # Script Contract
//
// Each script yields 0 (done) or -1 (known negative outcome: already known,
// nothing leasable in this batch, lease not found). Any other code is an
// internal protocol error: it is logged, counted and returned as a
// *ProtocolError, never retried.
package workqueue
