package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterMarkAndSeen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := NewFilter()

	seen, err := f.Seen(ctx, "alice")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, f.Mark(ctx, "alice"))
	require.NoError(t, f.Mark(ctx, "alice"))

	seen, err = f.Seen(ctx, "alice")
	require.NoError(t, err)
	require.True(t, seen)
	require.Equal(t, 1, f.Len())
}

func TestFilterConcurrentMarking(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := NewFilter()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = f.Mark(ctx, fmt.Sprintf("user-%d", i))
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 100, f.Len())
}
