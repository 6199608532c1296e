package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfWrapped(t *testing.T) {
	base := BusinessRule("El fiscal no está activo")
	wrapped := fmt.Errorf("reassign: %w", base)

	require.Equal(t, KindBusinessRule, KindOf(wrapped))
	require.True(t, Is(wrapped, KindBusinessRule))
	e, ok := As(wrapped)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, e.Status)
	require.Equal(t, CodeBusinessRule, e.Code)
}

func TestKindOfUntagged(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("boom")))
	require.False(t, Is(nil, KindInfrastructure))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Infrastructure("store unavailable", cause)
	require.Equal(t, "store unavailable: connection refused", err.Error())
	require.ErrorIs(t, err, cause)
	require.Equal(t, http.StatusInternalServerError, err.Status)
}
