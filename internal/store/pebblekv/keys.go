package pebblekv

import "encoding/binary"

// Key layout. Member and field separators are 0x00, which never appears in
// digests or collection names.
//
//	k/{key}                      single value, 8B expiry ms (0 = none) + payload
//	h/{hash}\x00{field}          hash field
//	s/{set}\x00{member}          set member (empty value)
//	c/h/{hash}, c/s/{set}        8B big-endian cardinality
//	x/{expiry ms 8B}{key}        expiry index, sorted by deadline
const (
	prefixKV    = "k/"
	prefixHash  = "h/"
	prefixSet   = "s/"
	prefixCount = "c/"
	prefixTTL   = "x/"
)

func kvKey(k string) []byte { return []byte(prefixKV + k) }

func hashKey(h, f string) []byte { return []byte(prefixHash + h + "\x00" + f) }

func setPrefix(s string) []byte { return []byte(prefixSet + s + "\x00") }

func setKey(s, m string) []byte { return append(setPrefix(s), m...) }

func hashCountKey(h string) []byte { return []byte(prefixCount + "h/" + h) }

func setCountKey(s string) []byte { return []byte(prefixCount + "s/" + s) }

func ttlKey(expMs int64, k string) []byte {
	out := make([]byte, len(prefixTTL)+8+len(k))
	copy(out, prefixTTL)
	binary.BigEndian.PutUint64(out[len(prefixTTL):], uint64(expMs))
	copy(out[len(prefixTTL)+8:], k)
	return out
}

// parseTTLKey splits an expiry index key into deadline and single-value key.
func parseTTLKey(b []byte) (int64, string, bool) {
	if len(b) < len(prefixTTL)+8 {
		return 0, "", false
	}
	exp := int64(binary.BigEndian.Uint64(b[len(prefixTTL):]))
	return exp, string(b[len(prefixTTL)+8:]), true
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func encodeValue(expMs int64, v []byte) []byte {
	out := make([]byte, 8+len(v))
	binary.BigEndian.PutUint64(out, uint64(expMs))
	copy(out[8:], v)
	return out
}

func decodeValue(b []byte) (int64, []byte, bool) {
	if len(b) < 8 {
		return 0, nil, false
	}
	return int64(binary.BigEndian.Uint64(b)), b[8:], true
}

func encodeCount(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

func decodeCount(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
