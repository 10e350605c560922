package csrf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doorman-auth/doorman/internal/websession"
)

func TestIssueIsIdempotentPerSession(t *testing.T) {
	state := &websession.State{}

	first, err := Issue(state)
	require.NoError(t, err)
	require.Len(t, first, 64) // 32 bytes hex-encoded

	second, err := Issue(state)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestIssueDiffersAcrossSessions(t *testing.T) {
	a, err := Issue(&websession.State{})
	require.NoError(t, err)

	b, err := Issue(&websession.State{})
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestVerify(t *testing.T) {
	state := &websession.State{}
	tok, err := Issue(state)
	require.NoError(t, err)

	require.NoError(t, Verify(state, tok))
}

func TestVerifyFailsWithoutIssuedToken(t *testing.T) {
	require.ErrorIs(t, Verify(&websession.State{}, "anything"), ErrInvalidToken)
}

func TestVerifyFailsOnMissingSubmittedToken(t *testing.T) {
	state := &websession.State{}
	_, err := Issue(state)
	require.NoError(t, err)

	require.ErrorIs(t, Verify(state, ""), ErrInvalidToken)
}

func TestVerifyFailsAcrossSessions(t *testing.T) {
	first := &websession.State{}
	tok, err := Issue(first)
	require.NoError(t, err)

	second := &websession.State{}
	_, err = Issue(second)
	require.NoError(t, err)

	require.ErrorIs(t, Verify(second, tok), ErrInvalidToken)
}

func TestVerifyFailsAfterSessionReset(t *testing.T) {
	state := &websession.State{}
	tok, err := Issue(state)
	require.NoError(t, err)

	state.Reset()
	require.ErrorIs(t, Verify(state, tok), ErrInvalidToken)

	// A fresh token gets issued after the reset and the old one stays dead
	fresh, err := Issue(state)
	require.NoError(t, err)
	require.NotEqual(t, tok, fresh)
	require.ErrorIs(t, Verify(state, tok), ErrInvalidToken)
}
