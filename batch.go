package ankigen

import (
	"context"
	"log/slog"
	"sync"
)

// BatchResult is everything a run produced: successful candidates, per-row
// failures, and the aggregate accounting. Candidate and failure order is not
// guaranteed; both retain the originating row index so callers needing
// source order re-sort on it.
type BatchResult struct {
	Cards    []CardCandidate
	Failures []ProcessedRow
	Stats    TokenStats
	Cost     float64
}

// Generator drives the per-row pipeline: render the prompt, call the
// completion service, parse and validate the response. Rows run concurrently
// under a bounded runner; each row's pipeline is self-contained and writes
// only to its own slot in the aggregate.
type Generator struct {
	invoker  Invoker
	scaffold *PromptScaffold
	pricing  Pricing
	log      *slog.Logger
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithPricing substitutes the price table used for cost accounting.
func WithPricing(p Pricing) GeneratorOption {
	return func(g *Generator) { g.pricing = p }
}

// WithScaffold substitutes the instruction scaffold.
func WithScaffold(s *PromptScaffold) GeneratorOption {
	return func(g *Generator) { g.scaffold = s }
}

// NewGenerator builds a generator over the given completion service.
func NewGenerator(invoker Invoker, log *slog.Logger, opts ...GeneratorOption) (*Generator, error) {
	if log == nil {
		log = slog.Default()
	}
	g := &Generator{invoker: invoker, log: log}
	for _, opt := range opts {
		opt(g)
	}
	if g.scaffold == nil {
		scaffold, err := NewPromptScaffold()
		if err != nil {
			return nil, err
		}
		g.scaffold = scaffold
	}
	if g.pricing == nil {
		g.pricing = DefaultPricing()
	}
	return g, nil
}

// Run processes every row against the prompt body and field map. One row's
// terminal failure never aborts the batch: it is recorded as a ProcessedRow
// and the rest continue. Token stats and cost reflect only the calls whose
// row ultimately succeeded.
func (g *Generator) Run(ctx context.Context, body string, fieldMap FieldMap, rows []Row, optFns ...func(*Options)) (*BatchResult, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	if err := fieldMap.Validate(); err != nil {
		return nil, err
	}
	opts := buildOptions(optFns)
	if opts.Model == "" {
		return nil, ErrModelMissing
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	system, err := g.scaffold.Generation(fieldMap.ModelKeys(), opts.ManyCards)
	if err != nil {
		return nil, err
	}
	schema := BuildSchema(fieldMap, opts.ManyCards)

	r := opts.Runner
	if r == nil {
		r = NewLimitedRunner(ctx, opts.Concurrency)
	}
	runCtx := runnerContext(r, ctx)

	g.log.Info("starting batch",
		"rows", len(rows),
		"model", opts.Model,
		"concurrency", opts.Concurrency,
		"many_cards", opts.ManyCards)

	var (
		mu     sync.Mutex
		result BatchResult
	)
	fail := func(index int, row Row, cause error) {
		mu.Lock()
		result.Failures = append(result.Failures, ProcessedRow{
			RowIndex: index,
			Row:      row,
			Error:    cause.Error(),
		})
		mu.Unlock()
		g.log.Warn("row failed", "row", index, "error", cause)
	}

	for i, row := range rows {
		prompt, err := Render(body, row)
		if err != nil {
			// Template-authoring error: aborts only this row, and no
			// network call is attempted.
			fail(i, row, err)
			continue
		}

		i, row := i, row
		r.Go(func() error {
			var (
				comp  *Completion
				cards []map[string]string
			)
			attempt := func() error {
				c, err := g.invoker.Complete(runCtx, CompletionRequest{
					Model:       opts.Model,
					System:      system,
					Prompt:      prompt,
					Temperature: opts.Temperature,
					MaxTokens:   opts.MaxTokens,
					ForceJSON:   true,
				})
				if err != nil {
					return err
				}
				parsed, err := ExtractJSON(c.Content)
				if err != nil {
					return err
				}
				fields, err := schema.Validate(parsed)
				if err != nil {
					return err
				}
				comp, cards = c, fields
				return nil
			}
			if err := opts.Retry.Do(runCtx, g.log.With("row", i), "generate", attempt); err != nil {
				fail(i, row, err)
				return nil
			}

			mu.Lock()
			result.Stats.Add(comp.Usage)
			result.Cost += g.pricing.Cost(opts.Model, comp.Usage.Input, comp.Usage.Output)
			for _, fields := range cards {
				result.Cards = append(result.Cards, CardCandidate{
					RowIndex:    i,
					Fields:      fields,
					RawResponse: comp.Content,
				})
			}
			mu.Unlock()
			return nil
		})
	}

	// Row tasks never return errors; Wait only joins.
	if err := r.Wait(); err != nil {
		return nil, err
	}

	g.log.Info("batch finished",
		"cards", len(result.Cards),
		"failures", len(result.Failures),
		"input_tokens", result.Stats.Input,
		"output_tokens", result.Stats.Output,
		"cost_usd", result.Cost)

	return &result, nil
}
