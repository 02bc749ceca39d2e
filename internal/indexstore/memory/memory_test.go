package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/ditto-upload/internal/indexstore"
)

func TestStore_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_SetAddRemoveMembers(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SetAdd(ctx, "gen:0", "a", "b", "c"))
	members, err := s.SetMembers(ctx, "gen:0")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, members)

	require.NoError(t, s.SetRemove(ctx, "gen:0", "b"))
	members, err = s.SetMembers(ctx, "gen:0")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "c"}, members)
}

func TestStore_Pipeline(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.Pipeline(ctx, func(p indexstore.Pipeliner) error {
		p.Set("x", "1", 0)
		p.SetAdd("gen:1", "k1")
		return nil
	})
	require.NoError(t, err)

	val, ok, err := s.Get(ctx, "x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", val)
}
