package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mivasi/ankigen"
)

func newDecksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decks",
		Short: "List decks in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.store().DeckNames(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List note types in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.store().ModelNames(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func newFieldsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <note-type>",
		Short: "List the fields of a note type, in store order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.store().ModelFieldNames(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var (
		deck  string
		query string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching notes to a tabular file",
		Long: `Export finds notes in the store and writes their fields to a .csv or .md
table. The search narrows by deck and an optional extra query in the store's
search syntax; adjacent terms are ANDed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store := a.store()

			q := fmt.Sprintf(`"deck:%s"`, ankigen.EscapeQueryValue(deck))
			if query != "" {
				q += " " + query
			}

			ids, err := store.FindNotes(ctx, q)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(a.out, warnStyle.Render("no notes matched"))
				return nil
			}

			notes, err := store.NotesInfo(ctx, ids)
			if err != nil {
				return err
			}

			header, rows, err := notesToTable(notes)
			if err != nil {
				return err
			}
			if err := ankigen.WriteTable(out, header, rows); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("exported %d notes to %s", len(rows), out)))
			return nil
		},
	}
	cmd.Flags().StringVar(&deck, "deck", "", "deck to export from")
	cmd.Flags().StringVar(&query, "query", "", "extra store query, e.g. 'Id:2001' or 'tag:verbs'")
	cmd.Flags().StringVar(&out, "out", "", "output file (.csv or .md)")
	_ = cmd.MarkFlagRequired("deck")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// notesToTable flattens notes into rows. All notes must share a note type so
// the header is well-defined; column order follows the store's field order.
func notesToTable(notes []ankigen.NoteInfo) ([]string, []ankigen.Row, error) {
	if len(notes) == 0 {
		return nil, nil, fmt.Errorf("no note details returned")
	}
	model := notes[0].ModelName
	for _, n := range notes {
		if n.ModelName != model {
			return nil, nil, fmt.Errorf("matched notes mix note types %q and %q; narrow the query", model, n.ModelName)
		}
	}

	type ordered struct {
		name  string
		order int
	}
	var cols []ordered
	for name, f := range notes[0].Fields {
		cols = append(cols, ordered{name, f.Order})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].order < cols[j].order })

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.name
	}

	rows := make([]ankigen.Row, 0, len(notes))
	for _, n := range notes {
		row := make(ankigen.Row, len(header))
		for _, col := range header {
			row[col] = n.Fields[col].Value
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
