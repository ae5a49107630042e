package tokenstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func TestSQLiteStore_EmptyLoad(t *testing.T) {
	s, _ := openTemp(t)

	tok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, tok)
}

func TestSQLiteStore_SaveOverwriteClear(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "first"))
	require.NoError(t, s.Save(ctx, "second"))

	tok, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", tok)

	require.NoError(t, s.Clear(ctx))
	tok, err = s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, tok)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "durable"))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	tok, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "durable", tok)
}

func TestSQLiteStore_ConcurrentOpensMigrateIndependently(t *testing.T) {
	dir := t.TempDir()

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	stores := make([]*SQLiteStore, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i], errs[i] = OpenSQLite(context.Background(), filepath.Join(dir, fmt.Sprintf("state-%d.db", i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		t.Cleanup(func() { _ = stores[i].Close() })

		require.NoError(t, stores[i].Save(context.Background(), fmt.Sprintf("tok-%d", i)))
		got, err := stores[i].Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("tok-%d", i), got)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tok"))
	tok, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "tok", tok)

	require.NoError(t, s.Clear(ctx))
	tok, err = s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, tok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, s.Save(cancelled, "x"), context.Canceled)
}
