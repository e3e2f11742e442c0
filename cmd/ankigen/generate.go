package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mivasi/ankigen"
)

type generateFlags struct {
	out         string
	appendOut   bool
	failedOut   string
	push        bool
	model       string
	checkModel  string
	deck        string
	noteType    string
	many        bool
	concurrency int
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	keepFlagged bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate <template> <table>",
		Short: "Generate cards from a template and a tabular file",
		Long: `Generate renders the template's prompt against every row of the table,
asks the model for card content, validates each response against the field
map, and marks duplicates already present in the collection. With a check
block in the template, a second pass judges each card and flagged cards are
reviewed interactively. Results go to a tabular file (--out) and/or straight
into the collection (--push).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd.Context(), args[0], args[1], f)
		},
	}

	cmd.Flags().StringVar(&f.out, "out", "", "write kept cards to this .csv or .md file")
	cmd.Flags().BoolVar(&f.appendOut, "append", false, "append to --out instead of replacing it")
	cmd.Flags().StringVar(&f.failedOut, "failed", "", "write failed rows (with _error column) to this file")
	cmd.Flags().BoolVar(&f.push, "push", false, "add kept non-duplicate cards to the collection")
	cmd.Flags().StringVar(&f.model, "model", "", "generation model (default: config)")
	cmd.Flags().StringVar(&f.checkModel, "check-model", "", "quality-check model (default: template, then config)")
	cmd.Flags().StringVar(&f.deck, "deck", "", "target deck (default: template front matter)")
	cmd.Flags().StringVar(&f.noteType, "note-type", "", "target note type (default: template front matter)")
	cmd.Flags().BoolVar(&f.many, "many", false, "allow several cards per row")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "rows in flight at once (default: config)")
	cmd.Flags().Float32Var(&f.temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().Int32Var(&f.maxTokens, "max-tokens", 0, "response token cap")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "bound on the whole run, e.g. 10m")
	cmd.Flags().BoolVar(&f.keepFlagged, "keep-flagged", false, "keep quality-check-flagged cards without asking")
	return cmd
}

func (a *app) runGenerate(ctx context.Context, templatePath, tablePath string, f generateFlags) error {
	tmpl, err := ankigen.LoadTemplate(templatePath)
	if err != nil {
		return err
	}
	header, rows, err := ankigen.ReadTable(tablePath)
	if err != nil {
		return err
	}

	store := a.store()
	if err := a.resolveTarget(ctx, store, tmpl, f); err != nil {
		return err
	}

	storeFields, err := ankigen.Preflight(ctx, store, tmpl, header)
	if err != nil {
		return err
	}

	invoker, err := ankigen.NewGenAIInvoker(ctx, a.cfg.GeminiAPIKey, a.log)
	if err != nil {
		return fmt.Errorf("set ANKIGEN_GEMINI_API_KEY or run 'ankigen config set gemini_api_key <key>': %w", err)
	}

	model := f.model
	if model == "" {
		model = a.cfg.Model
	}
	concurrency := f.concurrency
	if concurrency == 0 {
		concurrency = a.cfg.Concurrency
	}
	retry := a.cfg.RetryPolicy()

	optFns := []func(*ankigen.Options){
		ankigen.WithModel(model),
		ankigen.WithConcurrency(concurrency),
		ankigen.WithRetryPolicy(retry),
	}
	if f.many {
		optFns = append(optFns, ankigen.WithManyCards())
	}
	if f.temperature > 0 {
		optFns = append(optFns, ankigen.WithTemperature(f.temperature))
	}
	if f.maxTokens > 0 {
		optFns = append(optFns, ankigen.WithMaxTokens(f.maxTokens))
	}
	if f.timeout > 0 {
		optFns = append(optFns, ankigen.WithTimeout(f.timeout))
	}

	generator, err := ankigen.NewGenerator(invoker, a.log)
	if err != nil {
		return err
	}
	batch, err := generator.Run(ctx, tmpl.Body, tmpl.Fields, rows, optFns...)
	if err != nil {
		return err
	}

	validator := ankigen.NewCardValidator(
		ankigen.NewDuplicateChecker(store, a.log),
		tmpl.Fields, tmpl.Deck, tmpl.NoteType, storeFields, a.log)
	cards, err := validator.Validate(ctx, batch.Cards)
	if err != nil {
		return err
	}

	checkModel := f.checkModel
	if checkModel == "" {
		checkModel = a.cfg.CheckModel
	}
	if checkModel == "" {
		checkModel = model
	}
	checker, err := ankigen.NewQualityChecker(invoker, a.log)
	if err != nil {
		return err
	}
	checkOpts := []func(*ankigen.Options){
		ankigen.WithModel(checkModel),
		ankigen.WithConcurrency(concurrency),
		ankigen.WithRetryPolicy(retry),
	}
	check, err := checker.Run(ctx, cards, tmpl.Check, a.reviewer(f.keepFlagged), checkOpts...)
	if err != nil {
		return err
	}

	kept := check.Kept
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].RowIndex < kept[j].RowIndex })

	if f.out != "" && len(kept) > 0 {
		if err := a.writeCards(f.out, f.appendOut, tmpl.Fields, storeFields, kept); err != nil {
			return err
		}
	}
	if f.failedOut != "" && len(batch.Failures) > 0 {
		if err := writeFailures(f.failedOut, header, batch.Failures); err != nil {
			return err
		}
	}

	var pushed, rejected int
	if f.push && len(kept) > 0 {
		pushed, rejected, err = a.pushCards(ctx, store, tmpl, kept)
		if err != nil {
			return err
		}
	}

	a.printSummary(batch, check, kept, f, pushed, rejected)
	return nil
}

// resolveTarget fills in the deck and note type when the template front
// matter leaves them open: flags first, then an interactive pick from the
// store's lists.
func (a *app) resolveTarget(ctx context.Context, store *ankigen.AnkiConnect, tmpl *ankigen.Template, f generateFlags) error {
	if f.deck != "" {
		tmpl.Deck = f.deck
	}
	if f.noteType != "" {
		tmpl.NoteType = f.noteType
	}

	if tmpl.Deck == "" {
		decks, err := store.DeckNames(ctx)
		if err != nil {
			return err
		}
		tmpl.Deck, err = a.promptSelect("deck", decks)
		if err != nil {
			return err
		}
	}
	if tmpl.NoteType == "" {
		models, err := store.ModelNames(ctx)
		if err != nil {
			return err
		}
		tmpl.NoteType, err = a.promptSelect("note type", models)
		if err != nil {
			return err
		}
	}
	return nil
}

// reviewer returns the decision procedure for quality-check-flagged cards.
func (a *app) reviewer(keepFlagged bool) ankigen.Reviewer {
	if keepFlagged {
		return ankigen.ReviewerFunc(func(ankigen.ValidatedCard, string) (bool, error) {
			return true, nil
		})
	}
	return ankigen.ReviewerFunc(func(card ankigen.ValidatedCard, reason string) (bool, error) {
		fmt.Fprintln(a.out, headingStyle.Render(fmt.Sprintf("Flagged card (row %d)", card.RowIndex)))
		for field, value := range card.AnkiFields {
			fmt.Fprintf(a.out, "  %s: %s\n", dimStyle.Render(field), value)
		}
		fmt.Fprintln(a.out, warnStyle.Render("  reason: "+reason))
		return a.promptYesNo("Keep this card?", false)
	})
}

// writeCards serializes kept cards keyed by store field names, columns in
// store order.
func (a *app) writeCards(path string, appendOut bool, fieldMap ankigen.FieldMap, storeFields []string, cards []ankigen.ValidatedCard) error {
	header := make([]string, 0, len(fieldMap))
	for _, field := range storeFields {
		if _, mapped := fieldMap.KeyForStoreField(field); mapped {
			header = append(header, field)
		}
	}

	rows := make([]ankigen.Row, 0, len(cards))
	for _, card := range cards {
		rows = append(rows, ankigen.Row(card.AnkiFields))
	}
	if appendOut {
		return ankigen.AppendTable(path, header, rows)
	}
	return ankigen.WriteTable(path, header, rows)
}

func writeFailures(path string, header []string, failures []ankigen.ProcessedRow) error {
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].RowIndex < failures[j].RowIndex })
	rows := make([]ankigen.Row, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, f.Record())
	}
	return ankigen.WriteTable(path, append(append([]string{}, header...), "_error"), rows)
}

// pushCards adds kept cards to the collection, skipping the ones already
// marked duplicate.
func (a *app) pushCards(ctx context.Context, store *ankigen.AnkiConnect, tmpl *ankigen.Template, cards []ankigen.ValidatedCard) (pushed, rejected int, err error) {
	notes := make([]ankigen.Note, 0, len(cards))
	for _, card := range cards {
		if card.IsDuplicate {
			continue
		}
		notes = append(notes, ankigen.Note{
			DeckName:  tmpl.Deck,
			ModelName: tmpl.NoteType,
			Fields:    card.AnkiFields,
		})
	}
	if len(notes) == 0 {
		return 0, 0, nil
	}

	ids, err := store.AddNotes(ctx, notes)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if id == nil {
			rejected++
		} else {
			pushed++
		}
	}
	return pushed, rejected, nil
}

func (a *app) printSummary(batch *ankigen.BatchResult, check *ankigen.CheckResult, kept []ankigen.ValidatedCard, f generateFlags, pushed, rejected int) {
	duplicates := 0
	for _, card := range kept {
		if card.IsDuplicate {
			duplicates++
		}
	}

	stats := batch.Stats
	stats.Add(check.Stats)
	cost := batch.Cost + check.Cost

	fmt.Fprintln(a.out, headingStyle.Render("Summary"))
	fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("  cards kept:    %d", len(kept))))
	if duplicates > 0 {
		fmt.Fprintln(a.out, warnStyle.Render(fmt.Sprintf("  duplicates:    %d", duplicates)))
	}
	if len(batch.Failures) > 0 {
		fmt.Fprintln(a.out, errorStyle.Render(fmt.Sprintf("  failed rows:   %d", len(batch.Failures))))
		if f.failedOut == "" {
			for _, fr := range batch.Failures {
				fmt.Fprintln(a.out, dimStyle.Render(fmt.Sprintf("    row %d: %s", fr.RowIndex, fr.Error)))
			}
		}
	}
	if check.Flagged > 0 {
		fmt.Fprintf(a.out, "  flagged:       %d (dropped %d)\n", check.Flagged, len(check.Dropped))
	}
	if f.push {
		fmt.Fprintf(a.out, "  pushed:        %d (rejected by store: %d)\n", pushed, rejected)
	}
	fmt.Fprintf(a.out, "  tokens:        %d in / %d out\n", stats.Input, stats.Output)
	fmt.Fprintf(a.out, "  cost:          $%.4f\n", cost)
}
