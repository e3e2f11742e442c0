package ankigen

import (
	"context"
	"log/slog"
)

// checkFailedReason marks a card whose quality check could not be completed.
// Such cards are kept: an infrastructure failure must never silently drop
// content.
const checkFailedReason = "Check failed"

// CheckVerdict is the fixed response shape of a quality-check call.
type CheckVerdict struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
}

// Reviewer decides the fate of a flagged card. Implementations are
// interactive; the checker calls them strictly sequentially.
type Reviewer interface {
	Review(card ValidatedCard, reason string) (keep bool, err error)
}

// ReviewerFunc adapts a function to the Reviewer interface.
type ReviewerFunc func(card ValidatedCard, reason string) (bool, error)

func (f ReviewerFunc) Review(card ValidatedCard, reason string) (bool, error) {
	return f(card, reason)
}

// CheckResult is the outcome of the quality-check stage.
type CheckResult struct {
	Kept    []ValidatedCard
	Dropped []ValidatedCard
	Flagged int
	Stats   TokenStats
	Cost    float64
}

// QualityChecker runs the optional second LLM pass over selected cards. The
// machine phase evaluates all cards concurrently; flagged cards are then
// surfaced one at a time for a human decision.
type QualityChecker struct {
	invoker  Invoker
	scaffold *PromptScaffold
	pricing  Pricing
	log      *slog.Logger
}

// NewQualityChecker builds a checker over the given completion service.
func NewQualityChecker(invoker Invoker, log *slog.Logger, opts ...GeneratorOption) (*QualityChecker, error) {
	g, err := NewGenerator(invoker, log, opts...)
	if err != nil {
		return nil, err
	}
	return &QualityChecker{
		invoker:  g.invoker,
		scaffold: g.scaffold,
		pricing:  g.pricing,
		log:      g.log,
	}, nil
}

// Run checks every card against cfg and returns the kept set. A nil cfg is a
// pass-through. A check call that fails even after retries keeps the card
// with reason "Check failed" and contributes nothing to cost. Cards flagged
// invalid go to the reviewer sequentially, in row order; accepted ones are
// added back to the kept set.
func (q *QualityChecker) Run(ctx context.Context, cards []ValidatedCard, cfg *QualityCheckConfig, reviewer Reviewer, optFns ...func(*Options)) (*CheckResult, error) {
	result := &CheckResult{}
	if cfg == nil || len(cards) == 0 {
		result.Kept = append(result.Kept, cards...)
		return result, nil
	}

	opts := buildOptions(optFns)
	model := cfg.Model
	if model == "" {
		model = opts.Model
	}
	if model == "" {
		return nil, ErrModelMissing
	}

	system, err := q.scaffold.QualityCheck()
	if err != nil {
		return nil, err
	}

	q.log.Info("starting quality check", "cards", len(cards), "model", model, "field", cfg.Field)

	// Phase 1: machine-only evaluation, fully concurrent. Each slot is
	// written by exactly one task.
	verdicts := make([]CheckVerdict, len(cards))
	usages := make([]TokenStats, len(cards))
	costs := make([]float64, len(cards))

	r := opts.Runner
	if r == nil {
		r = NewLimitedRunner(ctx, opts.Concurrency)
	}
	runCtx := runnerContext(r, ctx)

	for i, card := range cards {
		i, card := i, card
		r.Go(func() error {
			verdict, usage, err := q.checkOne(runCtx, card, cfg, system, model, opts)
			if err != nil {
				// Fail-open: quality-checking is never a reason content is
				// dropped over an infrastructure error.
				q.log.Warn("quality check failed, keeping card",
					"row", card.RowIndex, "error", err)
				verdicts[i] = CheckVerdict{IsValid: true, Reason: checkFailedReason}
				return nil
			}
			verdicts[i] = *verdict
			usages[i] = usage
			costs[i] = q.pricing.Cost(model, usage.Input, usage.Output)
			return nil
		})
	}
	if err := r.Wait(); err != nil {
		return nil, err
	}

	var flagged []int
	for i := range cards {
		result.Stats.Add(usages[i])
		result.Cost += costs[i]
		if verdicts[i].IsValid {
			result.Kept = append(result.Kept, cards[i])
		} else {
			flagged = append(flagged, i)
		}
	}
	result.Flagged = len(flagged)

	// Phase 2: strictly sequential human review over the flagged list.
	for _, i := range flagged {
		card, reason := cards[i], verdicts[i].Reason
		keep, err := reviewer.Review(card, reason)
		if err != nil {
			return nil, err
		}
		if keep {
			result.Kept = append(result.Kept, card)
		} else {
			result.Dropped = append(result.Dropped, card)
			q.log.Info("card discarded after review", "row", card.RowIndex, "reason", reason)
		}
	}

	q.log.Info("quality check finished",
		"kept", len(result.Kept),
		"dropped", len(result.Dropped),
		"flagged", result.Flagged,
		"cost_usd", result.Cost)

	return result, nil
}

// checkOne renders and executes a single check call under the retry policy.
func (q *QualityChecker) checkOne(ctx context.Context, card ValidatedCard, cfg *QualityCheckConfig, system, model string, opts Options) (*CheckVerdict, TokenStats, error) {
	prompt, err := Render(cfg.Prompt, Row(card.Fields))
	if err != nil {
		return nil, TokenStats{}, err
	}

	var verdict *CheckVerdict
	var usage TokenStats
	attempt := func() error {
		c, err := q.invoker.Complete(ctx, CompletionRequest{
			Model:       model,
			System:      system,
			Prompt:      prompt,
			Temperature: opts.Temperature,
			ForceJSON:   true,
		})
		if err != nil {
			return err
		}
		parsed, err := ExtractJSON(c.Content)
		if err != nil {
			return err
		}
		v, err := parseVerdict(parsed)
		if err != nil {
			return err
		}
		verdict, usage = v, c.Usage
		return nil
	}
	if err := opts.Retry.Do(ctx, q.log.With("row", card.RowIndex), "quality check", attempt); err != nil {
		return nil, TokenStats{}, err
	}
	return verdict, usage, nil
}

// parseVerdict validates the fixed two-field check response.
func parseVerdict(v any) (*CheckVerdict, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &SchemaValidationError{Problems: []string{"verdict is not a JSON object"}}
	}
	var problems []string
	isValid, ok := obj["is_valid"].(bool)
	if !ok {
		problems = append(problems, `key "is_valid": expected boolean`)
	}
	reason, ok := obj["reason"].(string)
	if !ok {
		problems = append(problems, `key "reason": expected string`)
	}
	if len(problems) > 0 {
		return nil, &SchemaValidationError{Problems: problems}
	}
	return &CheckVerdict{IsValid: isValid, Reason: reason}, nil
}
