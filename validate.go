package ankigen

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// Preflight validates configuration-class inputs against the store and the
// source header before any generation starts, so a bad deck name or template
// never incurs network cost. It returns the note type's field names in store
// order; the first one is the store's uniqueness key.
func Preflight(ctx context.Context, store StoreClient, tmpl *Template, header []string) ([]string, error) {
	decks, err := store.DeckNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	if !slices.Contains(decks, tmpl.Deck) {
		return nil, &StoreMismatchError{Kind: "deck", Name: tmpl.Deck, Available: decks}
	}

	noteTypes, err := store.ModelNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list note types: %w", err)
	}
	if !slices.Contains(noteTypes, tmpl.NoteType) {
		return nil, &StoreMismatchError{Kind: "note type", Name: tmpl.NoteType, Available: noteTypes}
	}

	storeFields, err := store.ModelFieldNames(ctx, tmpl.NoteType)
	if err != nil {
		return nil, fmt.Errorf("list fields for %q: %w", tmpl.NoteType, err)
	}
	for _, field := range tmpl.Fields.StoreFields() {
		if !slices.Contains(storeFields, field) {
			return nil, &StoreMismatchError{Kind: "field", Name: field, Available: storeFields}
		}
	}

	for _, col := range Placeholders(tmpl.Body) {
		if !slices.Contains(header, col) {
			return nil, &MissingColumnError{Column: col}
		}
	}

	if tmpl.Check != nil {
		keys := tmpl.Fields.ModelKeys()
		for _, key := range Placeholders(tmpl.Check.Prompt) {
			if !slices.Contains(keys, key) {
				return nil, &MissingColumnError{Column: key}
			}
		}
		if !slices.Contains(keys, tmpl.Check.Field) {
			return nil, &MissingColumnError{Column: tmpl.Check.Field}
		}
	}

	return storeFields, nil
}

// CardValidator turns candidates into validated cards: field mapping to store
// names plus best-effort duplicate annotation.
type CardValidator struct {
	dupes      *DuplicateChecker
	fieldMap   FieldMap
	deck       string
	noteType   string
	firstField string // store's uniqueness field for the note type
	log        *slog.Logger
}

// NewCardValidator builds a validator. storeFields is the note type's field
// list in store order, as returned by Preflight.
func NewCardValidator(dupes *DuplicateChecker, fieldMap FieldMap, deck, noteType string, storeFields []string, log *slog.Logger) *CardValidator {
	if log == nil {
		log = slog.Default()
	}
	firstField := ""
	if len(storeFields) > 0 {
		firstField = storeFields[0]
	}
	return &CardValidator{
		dupes:      dupes,
		fieldMap:   fieldMap,
		deck:       deck,
		noteType:   noteType,
		firstField: firstField,
		log:        log,
	}
}

// Validate maps every candidate's fields to store names and annotates it
// with the duplicate flag. Candidates are handed in by value and new records
// come back; nothing is mutated in place. A MissingFieldError aborts the
// stage: it means the field map and the schema disagree, which is a
// configuration bug, not row noise.
func (v *CardValidator) Validate(ctx context.Context, candidates []CardCandidate) ([]ValidatedCard, error) {
	cards := make([]ValidatedCard, 0, len(candidates))
	for _, candidate := range candidates {
		ankiFields, err := MapFields(candidate, v.fieldMap)
		if err != nil {
			return nil, err
		}

		dup := false
		if value, ok := ankiFields[v.firstField]; ok && value != "" {
			dup = v.dupes.IsDuplicate(ctx, v.firstField, value, v.noteType, v.deck)
		}
		if dup {
			v.log.Info("duplicate card detected",
				"row", candidate.RowIndex,
				"field", v.firstField,
				"value", ankiFields[v.firstField])
		}

		cards = append(cards, ValidatedCard{
			CardCandidate: candidate,
			IsDuplicate:   dup,
			AnkiFields:    ankiFields,
		})
	}
	return cards, nil
}
