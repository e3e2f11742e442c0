package ankigen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	v, err := ExtractJSON(`{"front": "perro", "back": "dog"}`)
	require.NoError(t, err)

	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "perro", obj["front"])
}

func TestExtractJSONArray(t *testing.T) {
	v, err := ExtractJSON(`[{"front": "a"}, {"front": "b"}]`)
	require.NoError(t, err)

	arr, ok := v.([]any)
	require.True(t, ok)
	assert.Len(t, arr, 2)
}

func TestExtractJSONStripsFences(t *testing.T) {
	raw := "```json\n{\"front\": \"perro\"}\n```"
	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Contains(t, v.(map[string]any), "front")
}

func TestExtractJSONToleratesProse(t *testing.T) {
	raw := `Sure! Here is your card:
{"front": "perro", "back": "dog"}
Hope that helps.`
	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "dog", v.(map[string]any)["back"])
}

func TestExtractJSONMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"no json here",
		"{broken",
		`"just a string"`,
		"42",
	} {
		_, err := ExtractJSON(raw)
		var malformed *MalformedResponseError
		require.ErrorAs(t, err, &malformed, "input %q", raw)
		assert.True(t, retryableError(err))
	}
}

func TestExtractJSONSkipsEarlierBrokenCandidate(t *testing.T) {
	raw := `{oops and then {"front": "ok"}`
	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "ok", v.(map[string]any)["front"])
}
