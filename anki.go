package ankigen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultAnkiConnectURL is where the AnkiConnect add-on listens by default.
const DefaultAnkiConnectURL = "http://127.0.0.1:8765"

// ankiConnectVersion is the protocol version sent with every request.
const ankiConnectVersion = 6

// StoreClient is the flashcard store collaborator. The pipeline depends only
// on these operations.
type StoreClient interface {
	DeckNames(ctx context.Context) ([]string, error)
	ModelNames(ctx context.Context) ([]string, error)
	ModelFieldNames(ctx context.Context, noteType string) ([]string, error)
	FindNotes(ctx context.Context, query string) ([]int64, error)
}

// NoteField is one field of a stored note.
type NoteField struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// NoteInfo is the store's view of one note.
type NoteInfo struct {
	NoteID    int64                `json:"noteId"`
	ModelName string               `json:"modelName"`
	Tags      []string             `json:"tags"`
	Fields    map[string]NoteField `json:"fields"`
}

// Note is a new note to add to the store.
type Note struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags,omitempty"`
}

// AnkiConnect talks to the AnkiConnect add-on: JSON actions POSTed to a
// local HTTP endpoint, enveloped as {"action", "params", "version"} with a
// {"result", "error"} response.
type AnkiConnect struct {
	url string
	hc  *http.Client
	log *slog.Logger
}

// AnkiConnectOption customizes the client.
type AnkiConnectOption func(*AnkiConnect)

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) AnkiConnectOption {
	return func(c *AnkiConnect) { c.hc = hc }
}

// NewAnkiConnect builds a client for the given endpoint URL. An empty URL
// uses the default local endpoint.
func NewAnkiConnect(url string, log *slog.Logger, opts ...AnkiConnectOption) *AnkiConnect {
	if url == "" {
		url = DefaultAnkiConnectURL
	}
	if log == nil {
		log = slog.Default()
	}
	c := &AnkiConnect{
		url: url,
		hc:  &http.Client{Timeout: 30 * time.Second},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ankiRequest struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type ankiResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke performs one AnkiConnect action and decodes the result into out.
// Connection and HTTP failures come back as TransportError; an error string
// in the envelope is a store-level failure.
func (c *AnkiConnect) invoke(ctx context.Context, action string, params any, out any) error {
	body, err := json.Marshal(ankiRequest{Action: action, Version: ankiConnectVersion, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("anki-connect request", "action", action)

	resp, err := c.hc.Do(req)
	if err != nil {
		return &TransportError{Op: "anki-connect " + action, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{
			Op:  "anki-connect " + action,
			Err: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var envelope ankiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &TransportError{Op: "anki-connect " + action, Err: fmt.Errorf("decode response: %w", err)}
	}
	if envelope.Error != nil && *envelope.Error != "" {
		return fmt.Errorf("anki-connect %s: %s", action, *envelope.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", action, err)
	}
	return nil
}

// DeckNames lists the store's decks.
func (c *AnkiConnect) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ModelNames lists the store's note types.
func (c *AnkiConnect) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "modelNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ModelFieldNames lists the fields of a note type, in the store's order. The
// first field is the store's uniqueness key for that note type.
func (c *AnkiConnect) ModelFieldNames(ctx context.Context, noteType string) ([]string, error) {
	var names []string
	params := map[string]string{"modelName": noteType}
	if err := c.invoke(ctx, "modelFieldNames", params, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// FindNotes returns note ids matching a store query.
func (c *AnkiConnect) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	params := map[string]string{"query": query}
	if err := c.invoke(ctx, "findNotes", params, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// NotesInfo fetches full note details for the given ids.
func (c *AnkiConnect) NotesInfo(ctx context.Context, ids []int64) ([]NoteInfo, error) {
	var notes []NoteInfo
	params := map[string][]int64{"notes": ids}
	if err := c.invoke(ctx, "notesInfo", params, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// AddNotes adds notes to the store. The result holds one id per note, nil
// where the store rejected it (typically as a duplicate).
func (c *AnkiConnect) AddNotes(ctx context.Context, notes []Note) ([]*int64, error) {
	var ids []*int64
	params := map[string][]Note{"notes": notes}
	if err := c.invoke(ctx, "addNotes", params, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateNoteFields overwrites fields of an existing note.
func (c *AnkiConnect) UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error {
	params := map[string]any{
		"note": map[string]any{"id": id, "fields": fields},
	}
	return c.invoke(ctx, "updateNoteFields", params, nil)
}
