package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	raw, hash, err := New()
	require.NoError(t, err)

	require.Len(t, raw, 64) // 32 bytes hex-encoded
	require.Len(t, hash, 64)
	require.NotEqual(t, raw, hash)
	require.Equal(t, HashOf(raw), hash)
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		raw, _, err := New()
		require.NoError(t, err)
		require.False(t, seen[raw])
		seen[raw] = true
	}
}
