package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemPresenceCache(t *testing.T) {
	cache := NewMemPresenceCache()

	require.NoError(t, cache.AddOnline("alice"))
	require.NoError(t, cache.AddOnline("bob"))
	require.NoError(t, cache.AddOnline("alice")) // idempotent

	online, err := cache.Online()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alice", "bob"}, online)

	require.NoError(t, cache.DelOnline("alice"))
	require.NoError(t, cache.DelOnline("alice")) // idempotent

	online, err = cache.Online()
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, online)
}
