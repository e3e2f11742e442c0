// Package ankigen turns tabular source data into Anki flashcards with an
// LLM.
//
// The pipeline takes a card template (a prompt body with {column}
// placeholders plus YAML front matter naming the deck, note type, and field
// map) and a table of rows, renders one prompt per row, calls the completion
// service concurrently with retries, and validates every response against
// the field map before anything reaches the store. Candidates are checked
// against the store for duplicates, optionally re-judged by a second
// quality-check pass with human review of flagged cards, and finally written
// to a tabular file or pushed over AnkiConnect.
//
// One row's failure never aborts a batch: failed rows are collected with
// their cause and can be exported for a follow-up run. Token usage and cost
// are accounted per successful call.
package ankigen
