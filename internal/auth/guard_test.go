package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	creds map[string]Credentials
	puts  int
}

func newMemStore() *memStore {
	return &memStore{creds: make(map[string]Credentials)}
}

func (m *memStore) Get(_ context.Context, user string) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.creds[user]
	if !ok {
		return nil, nil
	}

	return &c, nil
}

func (m *memStore) Put(_ context.Context, user string, creds *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds[user] = *creds
	m.puts++

	return nil
}

type fakeRefresher struct {
	calls   atomic.Int32
	mu      sync.Mutex
	seen    []string
	respond func(rt string) (*Credentials, error)
}

func (f *fakeRefresher) Refresh(_ context.Context, rt string) (*Credentials, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, rt)
	f.mu.Unlock()

	return f.respond(rt)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGuard(store CredentialStore, r Refresher) *Guard {
	g := NewGuard(store, r, DefaultMargin, slog.Default())
	g.nowFunc = func() time.Time { return testNow }

	return g
}

func TestEnsureValid_FreshTokenReturnedUnchanged(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.creds["u1"] = Credentials{AccessToken: "live", RefreshToken: "rt", Expiry: testNow.Add(time.Hour)}

	r := &fakeRefresher{respond: func(string) (*Credentials, error) {
		t.Fatal("refresh must not be called")
		return nil, nil
	}}

	tok, err := newTestGuard(store, r).EnsureValid(t.Context(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "live", tok)
	assert.Zero(t, store.puts)
}

func TestEnsureValid_ExpiredOrStaleTokenAlwaysRefreshed(t *testing.T) {
	t.Parallel()

	expiries := map[string]time.Time{
		"already expired": testNow.Add(-time.Minute),
		"exactly now":     testNow,
		"inside margin":   testNow.Add(30 * time.Second),
		"zero expiry":     {},
	}

	for name, expiry := range expiries {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			store.creds["u1"] = Credentials{AccessToken: "stale", RefreshToken: "rt", Expiry: expiry}

			r := &fakeRefresher{respond: func(string) (*Credentials, error) {
				return &Credentials{AccessToken: "new", Expiry: testNow.Add(time.Hour)}, nil
			}}

			tok, err := newTestGuard(store, r).EnsureValid(t.Context(), "u1")
			require.NoError(t, err)
			assert.Equal(t, "new", tok)
			assert.Equal(t, int32(1), r.calls.Load())
		})
	}
}

func TestEnsureValid_PreservesRefreshTokenWhenOmitted(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.creds["u1"] = Credentials{
		AccessToken: "old", RefreshToken: "keep-me", TokenType: "Bearer",
		Expiry: testNow.Add(-time.Minute), Email: "a@example.com",
	}

	r := &fakeRefresher{respond: func(string) (*Credentials, error) {
		// Access token already expired so the next call refreshes again.
		return &Credentials{AccessToken: "new", Expiry: testNow.Add(-time.Second)}, nil
	}}

	g := newTestGuard(store, r)

	_, err := g.EnsureValid(t.Context(), "u1")
	require.NoError(t, err)

	saved := store.creds["u1"]
	assert.Equal(t, "keep-me", saved.RefreshToken)
	assert.Equal(t, "Bearer", saved.TokenType)
	assert.Equal(t, "a@example.com", saved.Email)
	assert.Equal(t, "new", saved.AccessToken)

	_, err = g.EnsureValid(t.Context(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep-me", "keep-me"}, r.seen)
}

func TestEnsureValid_RotatedRefreshTokenStored(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.creds["u1"] = Credentials{AccessToken: "old", RefreshToken: "rt1", Expiry: testNow.Add(-time.Minute)}

	r := &fakeRefresher{respond: func(string) (*Credentials, error) {
		return &Credentials{AccessToken: "new", RefreshToken: "rt2", Expiry: testNow.Add(time.Hour)}, nil
	}}

	_, err := newTestGuard(store, r).EnsureValid(t.Context(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "rt2", store.creds["u1"].RefreshToken)
}

func TestEnsureValid_AuthRequired(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.creds["norefresh"] = Credentials{AccessToken: "old", Expiry: testNow.Add(-time.Minute)}

	r := &fakeRefresher{respond: func(string) (*Credentials, error) {
		t.Fatal("refresh must not be called")
		return nil, nil
	}}

	g := newTestGuard(store, r)

	_, err := g.EnsureValid(t.Context(), "norefresh")
	require.ErrorIs(t, err, ErrAuthRequired)

	_, err = g.EnsureValid(t.Context(), "unknown")
	require.ErrorIs(t, err, ErrAuthRequired)
}

func TestEnsureValid_RefreshFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.creds["u1"] = Credentials{AccessToken: "old", RefreshToken: "rt", Expiry: testNow.Add(-time.Minute)}

	boom := errors.New("network down")
	r := &fakeRefresher{respond: func(string) (*Credentials, error) { return nil, boom }}

	_, err := newTestGuard(store, r).EnsureValid(t.Context(), "u1")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "old", store.creds["u1"].AccessToken)
	assert.Zero(t, store.puts)
}

func TestEnsureValid_ConcurrentCallersRefreshOnce(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.creds["u1"] = Credentials{AccessToken: "old", RefreshToken: "rt", Expiry: testNow.Add(-time.Minute)}

	r := &fakeRefresher{respond: func(string) (*Credentials, error) {
		time.Sleep(10 * time.Millisecond)
		return &Credentials{AccessToken: "new", Expiry: testNow.Add(time.Hour)}, nil
	}}

	g := newTestGuard(store, r)

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			tok, err := g.TokenSource("u1").Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "new", tok)
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), r.calls.Load())
}
