package idx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/splitbill/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortedAndUnique(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := idx.NewAt(at)
	for range 1000 {
		next := idx.NewAt(at)
		require.Less(t, prev.String(), next.String())
		prev = next
	}
	require.Equal(t, at, prev.Time())
}

func TestNewConcurrent(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen = make(map[idx.ID]struct{})
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				id := idx.New()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 1600)
}

func TestParse(t *testing.T) {
	t.Parallel()

	id := idx.New()
	got, err := idx.Parse(" " + id.String() + " ")
	require.NoError(t, err)
	require.Equal(t, id, got)

	for _, bad := range []string{"", "not-a-ulid", "01HZZZZZZZZZZZZZZZZZZZZZZ"} {
		_, err := idx.Parse(bad)
		require.ErrorIs(t, err, idx.ErrInvalid, bad)
	}

	require.True(t, idx.ID("bogus").Time().IsZero())
}
