package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns every Store implementation under its display name so
// the suite below exercises identical merge semantics in each.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"mem":    NewMemStore(),
		"sqlite": sqlite,
	}
}

func decode(t *testing.T, snap Snapshot) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(snap.Data, &doc))
	return doc
}

func TestCreateAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			snap, err := s.Create(ctx, "g1", map[string]any{"status": "waiting"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), snap.Revision)

			got, err := s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, "waiting", decode(t, got)["status"])

			_, err = s.Create(ctx, "g1", map[string]any{})
			assert.ErrorIs(t, err, ErrExists)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestApplySetNestedAndDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Create(ctx, "g1", map[string]any{"status": "waiting"})
			require.NoError(t, err)

			snap, err := s.Apply(ctx, "g1", Update{
				Set("players.p1.name", "Player 1"),
				Set("players.p1.ready", false),
				Set("status", "setup"),
			})
			require.NoError(t, err)
			assert.Equal(t, int64(2), snap.Revision)

			doc := decode(t, snap)
			players := doc["players"].(map[string]any)
			p1 := players["p1"].(map[string]any)
			assert.Equal(t, "Player 1", p1["name"])
			assert.Equal(t, false, p1["ready"])
			assert.Equal(t, "setup", doc["status"])

			snap, err = s.Apply(ctx, "g1", Update{Delete("players.p1.ready")})
			require.NoError(t, err)
			p1 = decode(t, snap)["players"].(map[string]any)["p1"].(map[string]any)
			_, ok := p1["ready"]
			assert.False(t, ok)
		})
	}
}

func TestApplyUnionIsIdempotent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Create(ctx, "g1", map[string]any{"calledNumbers": []int{}})
			require.NoError(t, err)

			_, err = s.Apply(ctx, "g1", Update{Union("calledNumbers", 7)})
			require.NoError(t, err)
			_, err = s.Apply(ctx, "g1", Update{Union("calledNumbers", 7, 12)})
			require.NoError(t, err)
			snap, err := s.Apply(ctx, "g1", Update{Union("calledNumbers", 12, 7)})
			require.NoError(t, err)

			assert.Equal(t, []any{float64(7), float64(12)}, decode(t, snap)["calledNumbers"])
		})
	}
}

func TestApplyFailedUpdateCommitsNothing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Create(ctx, "g1", map[string]any{"status": "waiting"})
			require.NoError(t, err)

			// The second op cannot be marshaled, so the first must not
			// stick either.
			_, err = s.Apply(ctx, "g1", Update{
				Set("status", "playing"),
				Set("bad", make(chan int)),
			})
			require.Error(t, err)

			snap, err := s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), snap.Revision)
			assert.Equal(t, "waiting", decode(t, snap)["status"])
		})
	}
}

func TestApplyUnionConcurrentDuplicatesCollapse(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Create(ctx, "g1", map[string]any{})
			require.NoError(t, err)

			// Two observers both believe it is their turn and append the
			// same number concurrently.
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Apply(ctx, "g1", Update{Union("calledNumbers", 42)})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			snap, err := s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, []any{float64(42)}, decode(t, snap)["calledNumbers"])
		})
	}
}

func TestSubscribeDeliversLatest(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Create(ctx, "g1", map[string]any{"status": "waiting"})
			require.NoError(t, err)

			ch, cancel, err := s.Subscribe(ctx, "g1")
			require.NoError(t, err)
			defer cancel()

			// Primed with the current snapshot.
			first := <-ch
			assert.Equal(t, "waiting", decode(t, first)["status"])

			// Burst of updates while the reader is idle: the channel
			// coalesces and the next read sees the newest state.
			for _, status := range []string{"setup", "playing", "finished"} {
				_, err := s.Apply(ctx, "g1", Update{Set("status", status)})
				require.NoError(t, err)
			}

			latest := <-ch
			assert.Equal(t, "finished", decode(t, latest)["status"])
		})
	}
}

func TestList(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)

			_, err = s.Create(ctx, "g1", map[string]any{})
			require.NoError(t, err)
			_, err = s.Create(ctx, "g2", map[string]any{})
			require.NoError(t, err)

			ids, err = s.List(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"g1", "g2"}, ids)
		})
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Create(ctx, "g1", map[string]any{})
			require.NoError(t, err)

			ch, cancel, err := s.Subscribe(ctx, "g1")
			require.NoError(t, err)
			<-ch
			cancel()

			_, err = s.Apply(ctx, "g1", Update{Set("status", "setup")})
			require.NoError(t, err)

			_, open := <-ch
			assert.False(t, open)
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/games.db"

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, "g1", map[string]any{"status": "playing"})
	require.NoError(t, err)
	_, err = s.Apply(ctx, "g1", Update{Union("calledNumbers", 3, 9)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	snap, err := reopened.Get(ctx, "g1")
	require.NoError(t, err)
	doc := decode(t, snap)
	assert.Equal(t, "playing", doc["status"])
	assert.Equal(t, []any{float64(3), float64(9)}, doc["calledNumbers"])
	assert.Equal(t, int64(2), snap.Revision)
}
