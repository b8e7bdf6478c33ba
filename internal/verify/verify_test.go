package verify

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrMoose/rescue/internal/candidate"
)

func TestOpenResource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "header.img")
	require.NoError(t, os.WriteFile(path, []byte("LUKS\xba\xbe"), 0o400))
	res, err := OpenResource(path)
	require.NoError(t, err)
	require.Equal(t, path, res.Path())
	data, err := res.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte("LUKS\xba\xbe"), data)

	_, err = OpenResource(filepath.Join(dir, "missing"))
	require.Error(t, err)
	_, err = OpenResource(dir)
	require.Error(t, err)
}

func TestOpenResourceLoadsLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(64<<20))
	require.NoError(t, f.Close())

	res, err := OpenResource(path)
	require.NoError(t, err)
	require.Nil(t, res.data, "nothing is read on open")

	_, err = res.Bytes()
	require.ErrorIs(t, err, ErrResourceTooLarge)
	require.Nil(t, res.data)

	_, err = Digest{}.Verify(context.Background(), res, "a")
	require.ErrorIs(t, err, ErrResourceTooLarge)
}

func TestDigestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest")
	require.NoError(t, os.WriteFile(path, []byte(candidate.Digest("Hi.RL!")+"\n"), 0o400))
	res, err := OpenResource(path)
	require.NoError(t, err)
	ok, err := Digest{}.Verify(context.Background(), res, "Hi.RL!")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDigest(t *testing.T) {
	res := NewResource("secret", []byte(candidate.Digest("Hi.RL!")+"\n"))
	var v Verifier = Digest{}
	ok, err := v.Verify(context.Background(), res, "Hi.RL!")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = v.Verify(context.Background(), res, "hi.rl!")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = v.Verify(context.Background(), NewResource("x", []byte("short")), "a")
	require.ErrorIs(t, err, ErrBadDigest)
}

func TestFunc(t *testing.T) {
	v := Func(func(_ context.Context, _ *Resource, c string) (bool, error) {
		if c == "boom" {
			return false, errors.New("boom")
		}
		return c == "yes", nil
	})
	ok, err := v.Verify(context.Background(), nil, "yes")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = v.Verify(context.Background(), nil, "boom")
	require.Error(t, err)
}

func TestExec(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh available")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "expected")
	require.NoError(t, os.WriteFile(path, []byte("open sesame"), 0o400))
	res, err := OpenResource(path)
	require.NoError(t, err)

	// exit 0 on match, 2 on miss, 7 when the resource is unreadable
	script := `test -r "$1" || exit 7; [ "$(cat)" = "$(cat "$1")" ] && exit 0; exit 2`
	v := &Exec{Command: []string{sh, "-c", script, "verifier", "{resource}"}}
	ok, err := v.Verify(context.Background(), res, "open sesame")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = v.Verify(context.Background(), res, "open sesame!")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = v.Verify(context.Background(), NewResource(filepath.Join(dir, "nope"), nil), "x")
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Exec{Command: []string{sh, "-c", "sleep 5"}}).Verify(ctx, res, "x")
	require.Error(t, err)
}
