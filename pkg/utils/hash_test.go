package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("s3cret-value")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-value", hash)
	assert.True(t, CheckSecret("s3cret-value", hash))
	assert.False(t, CheckSecret("other", hash))
}

func TestShareToken(t *testing.T) {
	urlSafe := regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		tok, err := ShareToken()
		require.NoError(t, err)
		assert.Len(t, tok, 43)
		assert.Regexp(t, urlSafe, tok)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
