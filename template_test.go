package ankigen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	row := Row{"word": "perro", "pos": "noun"}

	out, err := Render("Translate the {pos} {word}.", row)
	require.NoError(t, err)
	assert.Equal(t, "Translate the noun perro.", out)
}

func TestRenderRepeatedPlaceholder(t *testing.T) {
	out, err := Render("{word} and {word} again", Row{"word": "gato"})
	require.NoError(t, err)
	assert.Equal(t, "gato and gato again", out)
}

func TestRenderTrimsPlaceholderWhitespace(t *testing.T) {
	out, err := Render("say { word }", Row{"word": "hola"})
	require.NoError(t, err)
	assert.Equal(t, "say hola", out)
}

func TestRenderMissingColumn(t *testing.T) {
	_, err := Render("Translate {word} ({gender}).", Row{"word": "perro"})

	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "gender", missing.Column)
	assert.False(t, retryableError(err), "template errors must not be retried")
}

func TestRenderNoPartialOutputOnError(t *testing.T) {
	out, err := Render("{a} {missing}", Row{"a": "x"})
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestRenderLeavesBracelessTextAlone(t *testing.T) {
	out, err := Render("no placeholders here", Row{})
	require.NoError(t, err)
	assert.Equal(t, "no placeholders here", out)
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders("Use {word} as a {pos}; repeat {word}, add { example }.")
	assert.Equal(t, []string{"word", "pos", "example"}, names)
}

func TestPlaceholdersEmpty(t *testing.T) {
	assert.Empty(t, Placeholders("plain text"))
}

func TestRenderErrorIsNotRetryable(t *testing.T) {
	_, err := Render("{gone}", Row{})
	require.Error(t, err)
	assert.False(t, retryableError(err))
	assert.True(t, errors.As(err, new(*MissingColumnError)))
}
