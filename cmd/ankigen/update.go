package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mivasi/ankigen"
)

func newUpdateCmd(a *app) *cobra.Command {
	var (
		deck  string
		query string
		sets  []string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Overwrite fields of one existing note",
		Long: `Update finds a single note by deck and query and overwrites the given
fields. The query uses the store's search syntax, e.g. 'Id:2001' or
'Front:perro'. Exactly one note must match; narrow the query otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := parseSetPairs(sets)
			if err != nil {
				return err
			}
			return a.runUpdate(cmd.Context(), deck, query, fields)
		},
	}
	cmd.Flags().StringVar(&deck, "deck", "", "deck holding the note")
	cmd.Flags().StringVar(&query, "query", "", "store query selecting the note")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field to overwrite, as Field=value (repeatable)")
	_ = cmd.MarkFlagRequired("deck")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

// parseSetPairs turns repeated Field=value flags into a field map.
func parseSetPairs(pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("bad --set %q: want Field=value", pair)
		}
		if _, dup := fields[name]; dup {
			return nil, fmt.Errorf("field %q set twice", name)
		}
		fields[name] = value
	}
	return fields, nil
}

func (a *app) runUpdate(ctx context.Context, deck, query string, fields map[string]string) error {
	store := a.store()

	q := fmt.Sprintf(`"deck:%s" %s`, ankigen.EscapeQueryValue(deck), query)
	ids, err := store.FindNotes(ctx, q)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no note matches %q in deck %q", query, deck)
	}
	if len(ids) > 1 {
		return fmt.Errorf("%d notes match %q in deck %q; narrow the query", len(ids), query, deck)
	}

	notes, err := store.NotesInfo(ctx, ids)
	if err != nil {
		return err
	}
	if len(notes) != 1 {
		return fmt.Errorf("note %d not found", ids[0])
	}
	note := notes[0]

	for name := range fields {
		if _, known := note.Fields[name]; !known {
			return fmt.Errorf("note type %q has no field %q", note.ModelName, name)
		}
	}

	if err := store.UpdateNoteFields(ctx, note.NoteID, fields); err != nil {
		return err
	}
	fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("updated note %d (%d fields)", note.NoteID, len(fields))))
	return nil
}
