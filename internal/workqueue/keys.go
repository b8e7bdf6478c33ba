package workqueue

import "fmt"

// Key names inside a queue's prefix.
const (
	keyPasswords  = "passwords"
	keyCandidates = "candidates"
	keyLease      = "lease/"
	keySuccess    = "success"
	keyFailed     = "failed"
)

// Keys names the store keys of one queue namespace.
type Keys struct {
	prefix string
}

// NewKeys returns the keyspace of namespace.
// Format: ns/{namespace}/rsc/
func NewKeys(namespace string) Keys {
	return Keys{prefix: fmt.Sprintf("ns/%s/rsc/", namespace)}
}

// Passwords is the digest -> obfuscated text hash.
func (k Keys) Passwords() string { return k.prefix + keyPasswords }

// Pending is the set of digests waiting for a verdict.
func (k Keys) Pending() string { return k.prefix + keyCandidates }

// Lease is the expiring lease key of digest.
func (k Keys) Lease(digest string) string { return k.prefix + keyLease + digest }

// LeasePrefix prefixes every lease key of the queue.
func (k Keys) LeasePrefix() string { return k.prefix + keyLease }

// Success is the set of digests reported as matching.
func (k Keys) Success() string { return k.prefix + keySuccess }

// Failed is the set of digests reported as not matching.
func (k Keys) Failed() string { return k.prefix + keyFailed }
