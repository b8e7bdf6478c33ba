// Package candidate holds the digest and obfuscation helpers shared by every
// queue backend.
package candidate

import (
	"crypto/sha512"
	"encoding/hex"
)

// DefaultKey is the obfuscation key of existing deployments.
const DefaultKey = "WTF"

// DigestLen is the length of a hex digest.
const DigestLen = sha512.Size * 2

// Digest returns the lowercase hex SHA-512 of c. It is the queue key.
func Digest(c string) string {
	sum := sha512.Sum512([]byte(c))
	return hex.EncodeToString(sum[:])
}

// Obfuscator applies a repeating-key XOR to candidate text before storage.
// It keeps candidates out of casual view in the store; it is not encryption.
type Obfuscator struct {
	key []byte
}

// NewObfuscator returns an obfuscator for key. An empty key selects DefaultKey.
func NewObfuscator(key string) Obfuscator {
	if key == "" {
		key = DefaultKey
	}
	return Obfuscator{key: []byte(key)}
}

// Encode obfuscates s.
func (o Obfuscator) Encode(s string) []byte {
	return o.xor([]byte(s))
}

// Decode reverses Encode.
func (o Obfuscator) Decode(b []byte) string {
	return string(o.xor(b))
}

func (o Obfuscator) xor(in []byte) []byte {
	key := o.key
	if len(key) == 0 {
		key = []byte(DefaultKey)
	}
	out := make([]byte, len(in))
	for i, c := range in {
		out[i] = c ^ key[i%len(key)]
	}
	return out
}
