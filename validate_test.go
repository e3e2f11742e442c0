package ankigen

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preflightStore() *stubStore {
	return &stubStore{
		decks:     []string{"Spanish", "Default"},
		noteTypes: []string{"Basic", "Cloze"},
		fieldsByNT: map[string][]string{
			"Basic": {"Front", "Back"},
		},
	}
}

func preflightTemplate() *Template {
	return &Template{
		Deck:     "Spanish",
		NoteType: "Basic",
		Fields:   FieldMap{"word": "Front", "translation": "Back"},
		Body:     "Translate {word}.",
		Check: &QualityCheckConfig{
			Field:  "translation",
			Prompt: `Is "{translation}" right for "{word}"?`,
		},
	}
}

func TestPreflightOK(t *testing.T) {
	storeFields, err := Preflight(context.Background(), preflightStore(), preflightTemplate(), []string{"word", "hint"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Front", "Back"}, storeFields)
}

func TestPreflightUnknownDeck(t *testing.T) {
	tmpl := preflightTemplate()
	tmpl.Deck = "French"

	_, err := Preflight(context.Background(), preflightStore(), tmpl, []string{"word"})

	var mismatch *StoreMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "deck", mismatch.Kind)
	assert.Contains(t, mismatch.Available, "Spanish")
}

func TestPreflightUnknownNoteType(t *testing.T) {
	tmpl := preflightTemplate()
	tmpl.NoteType = "Vocabulary"

	_, err := Preflight(context.Background(), preflightStore(), tmpl, []string{"word"})

	var mismatch *StoreMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "note type", mismatch.Kind)
}

func TestPreflightUnknownStoreField(t *testing.T) {
	tmpl := preflightTemplate()
	tmpl.Fields = FieldMap{"word": "Front", "translation": "Meaning"}

	_, err := Preflight(context.Background(), preflightStore(), tmpl, []string{"word"})

	var mismatch *StoreMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "field", mismatch.Kind)
	assert.Equal(t, "Meaning", mismatch.Name)
}

func TestPreflightBodyPlaceholderNotInHeader(t *testing.T) {
	tmpl := preflightTemplate()
	tmpl.Body = "Translate {word} pronounced {ipa}."

	_, err := Preflight(context.Background(), preflightStore(), tmpl, []string{"word"})

	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ipa", missing.Column)
}

func TestPreflightCheckPromptAgainstModelKeys(t *testing.T) {
	tmpl := preflightTemplate()
	tmpl.Check.Prompt = "Judge {translation} and {grade}."

	_, err := Preflight(context.Background(), preflightStore(), tmpl, []string{"word"})

	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "grade", missing.Column)
}

func TestPreflightCheckFieldMustBeModelKey(t *testing.T) {
	tmpl := preflightTemplate()
	tmpl.Check.Field = "Front" // store name, not a model key

	_, err := Preflight(context.Background(), preflightStore(), tmpl, []string{"word"})
	require.Error(t, err)
}

func newTestCardValidator(store StoreClient) *CardValidator {
	return NewCardValidator(
		NewDuplicateChecker(store, discardLogger()),
		FieldMap{"word": "Front", "translation": "Back"},
		"Spanish", "Basic", []string{"Front", "Back"},
		discardLogger())
}

func TestCardValidatorMapsAndAnnotates(t *testing.T) {
	store := &stubStore{
		findNotesFn: func(_ context.Context, query string) ([]int64, error) {
			if strings.Contains(query, `"Front:perro"`) {
				return []int64{1501}, nil
			}
			return nil, nil
		},
	}
	v := newTestCardValidator(store)

	candidates := []CardCandidate{
		{RowIndex: 0, Fields: map[string]string{"word": "perro", "translation": "dog"}},
		{RowIndex: 1, Fields: map[string]string{"word": "gato", "translation": "cat"}},
	}
	cards, err := v.Validate(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	assert.True(t, cards[0].IsDuplicate)
	assert.Equal(t, map[string]string{"Front": "perro", "Back": "dog"}, cards[0].AnkiFields)
	assert.False(t, cards[1].IsDuplicate)
}

func TestCardValidatorAbortsOnMissingModelKey(t *testing.T) {
	v := newTestCardValidator(&stubStore{})

	candidates := []CardCandidate{
		{RowIndex: 0, Fields: map[string]string{"word": "perro"}}, // no translation
	}
	_, err := v.Validate(context.Background(), candidates)

	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
}

func TestCardValidatorUsesFirstStoreField(t *testing.T) {
	store := &stubStore{}
	v := newTestCardValidator(store)

	candidates := []CardCandidate{
		{RowIndex: 0, Fields: map[string]string{"word": "perro", "translation": "dog"}},
	}
	_, err := v.Validate(context.Background(), candidates)
	require.NoError(t, err)

	require.Len(t, store.queries, 1)
	assert.Contains(t, store.queries[0], `"Front:perro"`, "duplicate lookup keys on the first store field's value")
	assert.NotContains(t, store.queries[0], "dog")
}
