package converse_test

import (
	"testing"

	"github.com/fwojciec/converse"
	"github.com/stretchr/testify/assert"
)

func TestDefaultTheme(t *testing.T) {
	t.Parallel()

	theme := converse.DefaultTheme()

	assert.Equal(t, 4, theme.User)
	assert.Equal(t, 2, theme.Assistant)
	assert.Equal(t, 1, theme.Error)
	assert.Equal(t, 8, theme.Muted)
	assert.Equal(t, 5, theme.Accent)
	assert.Equal(t, 6, theme.Selected)
	assert.NotEqual(t, theme.User, theme.Assistant, "speakers must be distinguishable")
}
