package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalogKindRoundTrip(t *testing.T) {
	for _, kind := range CatalogKinds() {
		parsed, err := ParseCatalogKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseCatalogKind("behavior")
	assert.ErrorIs(t, err, ErrInvalidCatalogKind)
	_, err = ParseCatalogKind("")
	assert.ErrorIs(t, err, ErrInvalidCatalogKind)
}

func TestFunctionHypothesisValid(t *testing.T) {
	assert.True(t, FunctionEscape.Valid())
	assert.True(t, FunctionUnknown.Valid())
	assert.False(t, FunctionHypothesis("revenge").Valid())
	assert.False(t, FunctionHypothesis("").Valid())
}

func TestFallbackID(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	id := fallbackID(now)
	assert.Regexp(t, `^id_\d+_[0-9a-f]{6}$`, id)
	assert.Contains(t, id, "1773500940000")
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := NewID()
		require.NotEmpty(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
}
