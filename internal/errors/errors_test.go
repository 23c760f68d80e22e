package errors_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/TechQuilaMx/kestra-rbac-oauth/internal/errors"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "noop"))

	err := apperrors.Wrapf(apperrors.ErrInvalidGrant, "[provider %s] exchange", "idp")
	require.EqualError(t, err, "[provider idp] exchange: invalid grant")
	require.True(t, apperrors.Is(err, apperrors.ErrInvalidGrant))
	require.False(t, apperrors.Is(err, apperrors.ErrInvalidToken))
}
