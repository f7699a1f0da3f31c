package token_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mlevan/hearth/internal/pkg/token"
)

func TestNewTokenShape(t *testing.T) {
	raw, digest := token.New()
	require.Len(t, raw, 64)
	require.Len(t, digest, 64)
	require.NotEqual(t, raw, digest)
}

func TestDigestDeterministic(t *testing.T) {
	raw, digest := token.New()
	require.Equal(t, digest, token.Digest(raw))
	require.Equal(t, token.Digest("abc"), token.Digest("abc"))
	require.NotEqual(t, token.Digest("abc"), token.Digest("abd"))
}

func TestNewTokenUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		raw, _ := token.New()
		_, dup := seen[raw]
		require.False(t, dup)
		seen[raw] = struct{}{}
	}
}
