package stream

import (
	"testing"

	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/stretchr/testify/require"
)

func movieID(id int64) catalog.ItemID {
	return catalog.ItemID{Category: catalog.CategoryMovie, ID: id}
}

// TestSeenSetAdmitsOnce checks basic dedup and that categories keep
// identical numeric IDs distinct.
func TestSeenSetAdmitsOnce(t *testing.T) {
	t.Parallel()

	s := NewSeenSet(10)

	require.True(t, s.Admit(movieID(1)))
	require.False(t, s.Admit(movieID(1)))

	tvTwin := catalog.ItemID{Category: catalog.CategoryTV, ID: 1}
	require.True(t, s.Admit(tvTwin))
	require.Equal(t, 2, s.Len())
}

// TestSeenSetEvictsOldest checks FIFO eviction at the cap: the evicted
// identity becomes admissible again while newer ones stay blocked.
func TestSeenSetEvictsOldest(t *testing.T) {
	t.Parallel()

	s := NewSeenSet(3)
	for id := int64(1); id <= 4; id++ {
		require.True(t, s.Admit(movieID(id)))
	}

	require.Equal(t, 3, s.Len())
	require.True(t, s.Admit(movieID(1)))
	require.False(t, s.Admit(movieID(4)))
}
