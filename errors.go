package ankigen

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelMissing is returned when a run is started without a model.
	ErrModelMissing = errors.New("model not specified")
	// ErrEmptyFieldMap is returned for an empty or degenerate field map.
	ErrEmptyFieldMap = errors.New("field map is empty")
	// ErrNoRows is returned when the source table holds no records.
	ErrNoRows = errors.New("no rows to process")
)

// MissingColumnError reports a template placeholder that references a column
// absent from the source row. This is a template-authoring error, not a
// service error, and is never retried.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("template references missing column %q", e.Column)
}

// FieldMapConflictError reports two model keys mapped to the same store field.
type FieldMapConflictError struct {
	Field string
	Keys  []string
}

func (e *FieldMapConflictError) Error() string {
	return fmt.Sprintf("store field %q mapped by multiple model keys %v", e.Field, e.Keys)
}

// TransportError wraps a network or service failure. Retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a completion from which no JSON payload
// could be extracted. Retryable.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

// SchemaValidationError reports structurally valid JSON of the wrong shape.
// Problems enumerates every offending key so a single failure shows the
// complete list. Retryable.
type SchemaValidationError struct {
	Problems []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("response schema violation: %s", strings.Join(e.Problems, "; "))
}

// MissingFieldError reports a field-map key absent from a candidate's fields.
// Indicates a configuration bug; never retried.
type MissingFieldError struct {
	Key      string
	Expected []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("card is missing model key %q (expected keys: %s)",
		e.Key, strings.Join(e.Expected, ", "))
}

// StoreMismatchError reports a deck, note type, or field that does not exist
// in the store. Fatal: detected before any generation starts.
type StoreMismatchError struct {
	Kind      string // "deck", "note type", "field"
	Name      string
	Available []string
}

func (e *StoreMismatchError) Error() string {
	return fmt.Sprintf("%s %q not found in store (available: %s)",
		e.Kind, e.Name, strings.Join(e.Available, ", "))
}

// HeaderMismatchError reports an append whose record key set differs from the
// existing file header. The file is left untouched.
type HeaderMismatchError struct {
	Path string
	Have []string
	Want []string
}

func (e *HeaderMismatchError) Error() string {
	return fmt.Sprintf("%s: record keys %v do not match existing header %v",
		e.Path, e.Want, e.Have)
}

// retryableError reports whether a row-level attempt failure should be
// retried. Transport, parse, and schema failures are transient from the
// row's point of view; template and field-map failures are configuration
// bugs and escalate immediately.
func retryableError(err error) bool {
	var transport *TransportError
	var malformed *MalformedResponseError
	var schema *SchemaValidationError
	return errors.As(err, &transport) ||
		errors.As(err, &malformed) ||
		errors.As(err, &schema)
}
