package verify

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/MrMoose/rescue/internal/candidate"
)

// ErrBadDigest is returned when the resource does not hold a SHA-512 hex digest.
var ErrBadDigest = errors.New("verify: resource is not a sha512 hex digest")

// Digest matches candidates whose SHA-512 equals the hex digest stored in
// the resource. It is used for rehearsals and tests.
type Digest struct{}

func (Digest) Verify(_ context.Context, res *Resource, c string) (bool, error) {
	data, err := res.Bytes()
	if err != nil {
		return false, err
	}
	want := strings.ToLower(string(bytes.TrimSpace(data)))
	if len(want) != 128 {
		return false, ErrBadDigest
	}
	got := candidate.Digest(c)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}
