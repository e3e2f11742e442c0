package ankigen

import (
	"context"
	"io"
	"log/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubStore is an in-memory StoreClient with overridable behavior.
type stubStore struct {
	decks       []string
	noteTypes   []string
	fieldsByNT  map[string][]string
	findNotesFn func(ctx context.Context, query string) ([]int64, error)

	queries []string
}

func (s *stubStore) DeckNames(context.Context) ([]string, error) {
	return s.decks, nil
}

func (s *stubStore) ModelNames(context.Context) ([]string, error) {
	return s.noteTypes, nil
}

func (s *stubStore) ModelFieldNames(_ context.Context, noteType string) ([]string, error) {
	return s.fieldsByNT[noteType], nil
}

func (s *stubStore) FindNotes(ctx context.Context, query string) ([]int64, error) {
	s.queries = append(s.queries, query)
	if s.findNotesFn != nil {
		return s.findNotesFn(ctx, query)
	}
	return nil, nil
}
