package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesClonesByCode(t *testing.T) {
	clone := Clone(ErrConcurrentModification, "action act-1 changed, refetch")
	wrapped := fmt.Errorf("issue verdict: %w", clone)

	assert.True(t, errors.Is(wrapped, ErrConcurrentModification))
	assert.False(t, errors.Is(wrapped, ErrStateConflict))
	assert.Equal(t, "resource was modified concurrently, refetch and retry", ErrConcurrentModification.Message)
}

func TestStateConflictCarriesDetails(t *testing.T) {
	err := StateConflict("action", "act-1", "completed", "awaiting_verdict")
	require.True(t, errors.Is(err, ErrStateConflict))
	assert.Equal(t, http.StatusConflict, err.Status)

	details, ok := err.Details.(StateConflictDetails)
	require.True(t, ok)
	assert.Equal(t, "completed", details.Current)
	assert.Equal(t, []string{"awaiting_verdict"}, details.Expected)
	assert.Nil(t, ErrStateConflict.Details)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	raw := errors.New("boom")
	appErr := FromError(raw)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, raw)
	assert.Nil(t, FromError(nil))

	typed := Clone(ErrNotFound, "report not found")
	assert.Same(t, typed, FromError(fmt.Errorf("ctx: %w", typed)))
}
