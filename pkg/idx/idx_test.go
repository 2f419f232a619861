package idx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retrade/authmesh/pkg/idx"
)

func TestNew(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())
	require.Len(t, id.String(), 26)

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParse(t *testing.T) {
	for _, s := range []string{"", "sess-1", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZU"} {
		_, err := idx.Parse(s)
		require.ErrorIs(t, err, idx.ErrInvalid, s)
	}
}

func TestTime(t *testing.T) {
	login := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	require.Equal(t, login, idx.NewAt(login).Time())
	require.True(t, idx.ID("not-a-ulid").Time().IsZero())
}

func TestUniqueUnderConcurrency(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)

	var (
		mu  sync.Mutex
		ids []string
		wg  sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id := idx.NewAt(at)
				mu.Lock()
				ids = append(ids, id.String())
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		require.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	require.Less(t, idx.NewAt(at).String(), idx.NewAt(at.Add(time.Millisecond)).String())
}
