package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatsFieldsInOrder(t *testing.T) {
	err := New("channel", CodeAuthMismatch,
		WithMessage(` channel "c" mismatch `),
		WithField("found", "api_key"),
		WithField("expected", "basic_auth"),
	)

	assert.Equal(t, `op=channel code=auth_mismatch message="channel \"c\" mismatch" fields=expected="basic_auth",found="api_key"`, err.Error())
}

func TestIsMatchesByCodeThroughWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("list sources: %w", New("sources.list", CodeTransport, WithHTTP(502), WithCause(cause)))

	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)

	var e *E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 502, e.HTTP)
}

func TestNilEnvelope(t *testing.T) {
	var e *E
	assert.Equal(t, "<nil>", e.Error())
	assert.Empty(t, e.Field("x"))
	assert.False(t, e.Is(ErrTimeout))
}
