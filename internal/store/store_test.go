package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizzer/internal/store"
)

// backend bundles a Store with a way to move its clock forward.
type backend struct {
	store   store.Store
	advance func(d time.Duration)
}

func backends(t *testing.T) map[string]func(t *testing.T) backend {
	return map[string]func(t *testing.T) backend{
		"redis": func(t *testing.T) backend {
			rs := miniredis.RunT(t)
			rc := redis.NewUniversalClient(&redis.UniversalOptions{
				Addrs: []string{rs.Addr()},
			})
			t.Cleanup(func() { rc.Close() })

			return backend{
				store:   store.NewRedis(rc),
				advance: rs.FastForward,
			}
		},

		"memory": func(t *testing.T) backend {
			var (
				mu  sync.Mutex
				now = time.Unix(1729321800, 0)
			)
			clock := func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				return now
			}

			return backend{
				store: store.NewMemory(clock),
				advance: func(d time.Duration) {
					mu.Lock()
					now = now.Add(d)
					mu.Unlock()
				},
			}
		},
	}
}

func TestStore_GetPut(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := mk(t)

			_, ok, err := b.store.Get(ctx, "gameSession_missing")
			require.NoError(t, err)
			require.False(t, ok, "missing key should be absent")

			require.NoError(t, b.store.Put(ctx, "gameSession_s1", []byte("v1"), 900*time.Second))

			got, ok, err := b.store.Get(ctx, "gameSession_s1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("v1"), got)
		})
	}
}

func TestStore_PutKeepTTLDoesNotExtendLifetime(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := mk(t)

			require.NoError(t, b.store.Put(ctx, "k", []byte("v1"), 900*time.Second))

			b.advance(600 * time.Second)
			require.NoError(t, b.store.Put(ctx, "k", []byte("v2"), store.KeepTTL))

			got, ok, err := b.store.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("v2"), got)

			b.advance(301 * time.Second)
			_, ok, err = b.store.Get(ctx, "k")
			require.NoError(t, err)
			require.False(t, ok, "entry should expire 900s after creation regardless of updates")
		})
	}
}

func TestStore_CompareAndPut(t *testing.T) {
	type outputs struct {
		swapped bool
		value   []byte
		present bool
	}

	tests := map[string]struct {
		seed   []byte
		old    []byte
		assert func(t *testing.T, out outputs)
	}{
		"should swap when the stored value matches": {
			seed: []byte(`{"version":1}`),
			old:  []byte(`{"version":1}`),
			assert: func(t *testing.T, out outputs) {
				require.True(t, out.swapped)
				require.Equal(t, []byte(`{"version":2}`), out.value)
			},
		},

		"should not swap when the stored value changed": {
			seed: []byte(`{"version":3}`),
			old:  []byte(`{"version":1}`),
			assert: func(t *testing.T, out outputs) {
				require.False(t, out.swapped)
				require.Equal(t, []byte(`{"version":3}`), out.value)
			},
		},

		"should not create a missing key": {
			old: []byte(`{"version":1}`),
			assert: func(t *testing.T, out outputs) {
				require.False(t, out.swapped)
				require.False(t, out.present)
			},
		},
	}

	for bname, mk := range backends(t) {
		for name, tt := range tests {
			t.Run(bname+"/"+name, func(t *testing.T) {
				ctx := context.Background()
				b := mk(t)

				if tt.seed != nil {
					require.NoError(t, b.store.Put(ctx, "k", tt.seed, time.Minute))
				}

				var (
					out outputs
					err error
				)
				out.swapped, err = b.store.CompareAndPut(ctx, "k", tt.old, []byte(`{"version":2}`))
				require.NoError(t, err)

				out.value, out.present, err = b.store.Get(ctx, "k")
				require.NoError(t, err)

				tt.assert(t, out)
			})
		}
	}
}

func TestStore_CompareAndPutKeepsTTL(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := mk(t)

			require.NoError(t, b.store.Put(ctx, "k", []byte("a"), 900*time.Second))
			b.advance(899 * time.Second)

			ok, err := b.store.CompareAndPut(ctx, "k", []byte("a"), []byte("b"))
			require.NoError(t, err)
			require.True(t, ok)

			b.advance(2 * time.Second)
			_, ok, err = b.store.Get(ctx, "k")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestRedis_TTL(t *testing.T) {
	ctx := context.Background()
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})
	s := store.NewRedis(rc)

	require.NoError(t, s.Put(ctx, "gameSession_s1", []byte("a"), 900*time.Second))
	require.Equal(t, 900*time.Second, rs.TTL("gameSession_s1"))

	rs.FastForward(100 * time.Second)
	require.NoError(t, s.Put(ctx, "gameSession_s1", []byte("b"), store.KeepTTL))
	require.Equal(t, 800*time.Second, rs.TTL("gameSession_s1"))
}
