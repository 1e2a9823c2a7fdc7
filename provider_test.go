package converse_test

import (
	"testing"

	"github.com/fwojciec/converse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	t.Parallel()

	t.Run("accepts known providers ignoring case", func(t *testing.T) {
		t.Parallel()
		p, err := converse.ParseProvider(" Claude ")
		require.NoError(t, err)
		assert.Equal(t, converse.ProviderClaude, p)
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		t.Parallel()
		_, err := converse.ParseProvider("gemini")
		assert.ErrorIs(t, err, converse.ErrValidation)
	})
}

func TestProvider_Next(t *testing.T) {
	t.Parallel()
	assert.Equal(t, converse.ProviderClaude, converse.ProviderOpenAI.Next())
	assert.Equal(t, converse.ProviderDeepSeek, converse.ProviderClaude.Next())
	assert.Equal(t, converse.ProviderOpenAI, converse.ProviderDeepSeek.Next())
	assert.Equal(t, converse.ProviderOpenAI, converse.Provider("bogus").Next())
}
