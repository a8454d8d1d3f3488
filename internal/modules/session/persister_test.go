package session

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPersister(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()

	_, err := p.Load(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	blob := []byte(`{"isAuth":false}`)
	require.NoError(t, p.Save(ctx, "k", blob))
	blob[0] = 'X'

	got, err := p.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, `{"isAuth":false}`, string(got))
}

func TestFilePersister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	p := NewFilePersister(path)

	_, err := p.Load(ctx, DefaultStorageKey)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.Save(ctx, DefaultStorageKey, []byte(`{"accessToken":"a1"}`)))
	require.NoError(t, p.Save(ctx, "other", []byte(`{"accessToken":"b1"}`)))
	require.NoError(t, p.Save(ctx, DefaultStorageKey, []byte(`{"accessToken":"a2"}`)))

	got, err := p.Load(ctx, DefaultStorageKey)
	require.NoError(t, err)
	require.JSONEq(t, `{"accessToken":"a2"}`, string(got))

	got, err = NewFilePersister(path).Load(ctx, "other")
	require.NoError(t, err)
	require.JSONEq(t, `{"accessToken":"b1"}`, string(got))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestFilePersister_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))

	_, err := NewFilePersister(path).Load(context.Background(), DefaultStorageKey)
	require.ErrorContains(t, err, "parse session file")
}

func TestStore_WithFilePersister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	s := NewStore(NewFilePersister(path))
	require.NoError(t, s.Login(ctx, Credentials{AccessToken: "a1", RefreshToken: "r1"}, alice))
	require.NoError(t, s.Logout(ctx))

	restored := NewStore(NewFilePersister(path))
	require.NoError(t, restored.Load(ctx))
	require.Equal(t, State{}, restored.Snapshot())
}
