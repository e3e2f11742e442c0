package ankigen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// queryEscaper escapes the store query DSL's metacharacters: backslash first,
// then quote and the wildcard markers. Leaving a quote unescaped would break
// query parsing; an unescaped * or _ would turn a literal value into a
// wildcard match.
var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`*`, `\*`,
	`_`, `\_`,
)

// EscapeQueryValue makes a field value safe to interpolate into a store
// search query.
func EscapeQueryValue(s string) string {
	return queryEscaper.Replace(s)
}

// DuplicateChecker asks the store whether a candidate's unique key already
// exists. The store's uniqueness key is note type + first-field content.
type DuplicateChecker struct {
	store StoreClient
	log   *slog.Logger
}

// NewDuplicateChecker builds a checker over the given store.
func NewDuplicateChecker(store StoreClient, log *slog.Logger) *DuplicateChecker {
	if log == nil {
		log = slog.Default()
	}
	return &DuplicateChecker{store: store, log: log}
}

// IsDuplicate reports whether a note whose first field holds value already
// exists for the note type and deck. The value term is prefixed with the
// field name so a match in some other field never counts as a duplicate.
// Adjacent quoted terms are implicit AND in the store's query DSL. Duplicate
// detection is best-effort: a store failure is logged and treated as "not a
// duplicate" rather than aborting the row.
func (d *DuplicateChecker) IsDuplicate(ctx context.Context, firstField, value, noteType, deck string) bool {
	query := fmt.Sprintf(`"note:%s" "deck:%s" "%s:%s"`,
		EscapeQueryValue(noteType),
		EscapeQueryValue(deck),
		EscapeQueryValue(firstField),
		EscapeQueryValue(value))

	ids, err := d.store.FindNotes(ctx, query)
	if err != nil {
		d.log.Warn("duplicate check failed, treating as non-duplicate",
			"note_type", noteType,
			"deck", deck,
			"error", err)
		return false
	}
	return len(ids) > 0
}
