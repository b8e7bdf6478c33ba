// Package verify decides whether a candidate opens the protected resource.
//
// The cryptographic check itself is external: Exec delegates to a command
// such as cryptsetup, Digest compares against a stored SHA-512 digest.
// Verifiers are safe for concurrent use and never modify the resource.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Verifier checks one candidate against a resource.
type Verifier interface {
	Verify(ctx context.Context, res *Resource, candidate string) (bool, error)
}

// Func adapts a function to Verifier.
type Func func(ctx context.Context, res *Resource, candidate string) (bool, error)

func (f Func) Verify(ctx context.Context, res *Resource, candidate string) (bool, error) {
	return f(ctx, res, candidate)
}

// MaxResourceBytes caps what Bytes loads. Verifiers that need the content
// work on small files such as digests; volumes are only passed by path.
const MaxResourceBytes = 1 << 20

// ErrResourceTooLarge is returned by Bytes for files over MaxResourceBytes.
var ErrResourceTooLarge = errors.New("verify: resource too large to load")

// Resource is a read-only handle on the protected file, for example a LUKS
// device or detached header. Content is loaded on the first Bytes call and
// shared afterwards.
type Resource struct {
	path string

	once sync.Once
	data []byte
	err  error
}

// OpenResource checks that path is a readable file or device. Nothing is
// read and the file is never opened for writing.
func OpenResource(path string) (*Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("verify: open resource: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("verify: stat resource: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("verify: resource %s is a directory", path)
	}
	return &Resource{path: path}, nil
}

// NewResource wraps in-memory content, mainly for tests.
func NewResource(path string, data []byte) *Resource {
	r := &Resource{path: path, data: data}
	r.once.Do(func() {})
	return r
}

func (r *Resource) Path() string { return r.path }

// Bytes returns the shared content, reading at most MaxResourceBytes.
// Callers must not modify it.
func (r *Resource) Bytes() ([]byte, error) {
	r.once.Do(func() { r.data, r.err = readCapped(r.path, MaxResourceBytes) })
	return r.data, r.err
}

func readCapped(path string, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("verify: open resource: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fmt.Errorf("verify: read resource: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: %s is over %d bytes", ErrResourceTooLarge, path, max)
	}
	return data, nil
}
