package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/scout/internal/config"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	raw, hash, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, tokenPrefix))
	assert.Len(t, raw, len(tokenPrefix)+64)
	assert.Equal(t, HashToken(raw), hash)

	raw2, _, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}

func TestHashToken_KnownVector(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		HashToken("hello"))
}

func TestTokenSet_Validate(t *testing.T) {
	t.Parallel()

	ts, err := NewTokenSet([]config.APITokenEntry{
		{Name: "laptop", TokenHash: HashToken("secret-a")},
		{Name: "phone", TokenHash: strings.ToUpper(HashToken("secret-b"))},
	})
	require.NoError(t, err)
	assert.False(t, ts.Empty())

	name, ok := ts.Validate("secret-a")
	assert.True(t, ok)
	assert.Equal(t, "laptop", name)

	name, ok = ts.Validate("secret-b")
	assert.True(t, ok)
	assert.Equal(t, "phone", name)

	_, ok = ts.Validate("wrong")
	assert.False(t, ok)
}

func TestNewTokenSet_RejectsMalformedHash(t *testing.T) {
	t.Parallel()

	for _, h := range []string{"", "zz", "abcd"} {
		_, err := NewTokenSet([]config.APITokenEntry{{Name: "bad", TokenHash: h}})
		require.Error(t, err, "hash %q", h)
		assert.Contains(t, err.Error(), `"bad"`)
	}
}

func TestTokenSet_Empty(t *testing.T) {
	t.Parallel()

	ts, err := NewTokenSet(nil)
	require.NoError(t, err)
	assert.True(t, ts.Empty())

	_, ok := ts.Validate("")
	assert.False(t, ok)
}
