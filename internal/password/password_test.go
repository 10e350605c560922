package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fast parameters so the suite stays quick; production costs live in DefaultParams
var testParams = Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("password1", testParams)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	ok, err := Verify("password1", encoded)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Verify("password2", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("password1", testParams)
	require.NoError(t, err)

	second, err := Hash("password1", testParams)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestVerifyUsesParamsFromHash(t *testing.T) {
	// Hash under one cost, verify without knowing it
	stronger := testParams
	stronger.Iterations = 2

	encoded, err := Hash("password1", stronger)
	require.NoError(t, err)

	ok, err := Verify("password1", encoded)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	} {
		ok, err := Verify("password1", encoded)
		require.ErrorIs(t, err, ErrInvalidHash, "hash %q", encoded)
		require.False(t, ok)
	}
}
