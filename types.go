package ankigen

import (
	"sort"
	"time"
)

// Row is one source record, keyed by column name. Rows are immutable once
// read; one row produces at most one candidate card (or several in
// many-cards mode).
type Row map[string]string

// FieldMap maps model-output keys to store field names. It must be bijective:
// the field set is only known at run time from the template front matter, so
// the mapping is validated explicitly rather than encoded in types.
type FieldMap map[string]string

// Validate checks that the map is non-empty and bijective with non-empty
// names on both sides.
func (fm FieldMap) Validate() error {
	if len(fm) == 0 {
		return ErrEmptyFieldMap
	}
	seen := make(map[string]string, len(fm))
	for key, field := range fm {
		if key == "" || field == "" {
			return ErrEmptyFieldMap
		}
		if prev, dup := seen[field]; dup {
			return &FieldMapConflictError{Field: field, Keys: []string{prev, key}}
		}
		seen[field] = key
	}
	return nil
}

// ModelKeys returns the model-output keys in a stable order.
func (fm FieldMap) ModelKeys() []string {
	keys := make([]string, 0, len(fm))
	for k := range fm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StoreFields returns the store field names in a stable order.
func (fm FieldMap) StoreFields() []string {
	fields := make([]string, 0, len(fm))
	for _, f := range fm {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// KeyForStoreField returns the model key mapped to the given store field.
func (fm FieldMap) KeyForStoreField(field string) (string, bool) {
	for k, f := range fm {
		if f == field {
			return k, true
		}
	}
	return "", false
}

// TokenStats counts tokens consumed by completion calls.
type TokenStats struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Add accumulates another stats value.
func (t *TokenStats) Add(u TokenStats) {
	t.Input += u.Input
	t.Output += u.Output
}

// Total returns input + output.
func (t TokenStats) Total() int { return t.Input + t.Output }

// CardCandidate is the model's structured output for one row, keyed by
// model-output field names. RawResponse is kept for diagnostics.
type CardCandidate struct {
	RowIndex    int
	Fields      map[string]string
	RawResponse string
}

// ValidatedCard is a candidate after field mapping and duplicate annotation.
// AnkiFields is keyed by store field names.
type ValidatedCard struct {
	CardCandidate
	IsDuplicate bool
	AnkiFields  map[string]string
}

// errorColumn is the reserved column carrying a row's failure cause in
// failure reports and exported tables.
const errorColumn = "_error"

// ProcessedRow is a source row that exhausted its retries, annotated with a
// human-readable cause.
type ProcessedRow struct {
	RowIndex int
	Row      Row
	Error    string
}

// Record returns the row augmented with the _error column, suitable for
// tabular export.
func (p ProcessedRow) Record() Row {
	out := make(Row, len(p.Row)+1)
	for k, v := range p.Row {
		out[k] = v
	}
	out[errorColumn] = p.Error
	return out
}

// QualityCheckConfig configures the optional second-pass check. When absent
// from the template the quality-check stage is a pass-through.
type QualityCheckConfig struct {
	Field  string `yaml:"field"  validate:"required"`
	Prompt string `yaml:"prompt" validate:"required"`
	Model  string `yaml:"model"`
}

// Runner lets the pipeline schedule work with any concurrency model.
type Runner interface {
	Go(fn func() error)
	Wait() error
}

// Options represents functional options for a batch or quality-check run.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int32
	Concurrency int           // 0 → DefaultConcurrency
	Retry       *RetryPolicy  // nil → DefaultRetryPolicy
	ManyCards   bool          // allow a top-level array of cards per response
	Timeout     time.Duration // bound on the whole run; 0 → none
	Runner      Runner        // nil → bounded errgroup runner
}

// DefaultConcurrency is the bound on in-flight rows when none is configured.
const DefaultConcurrency = 4

func WithModel(name string) func(*Options) {
	return func(o *Options) { o.Model = name }
}

func WithTemperature(t float32) func(*Options) {
	return func(o *Options) { o.Temperature = t }
}

func WithMaxTokens(n int32) func(*Options) {
	return func(o *Options) { o.MaxTokens = n }
}

func WithConcurrency(n int) func(*Options) {
	return func(o *Options) { o.Concurrency = n }
}

func WithRetryPolicy(p RetryPolicy) func(*Options) {
	return func(o *Options) { o.Retry = &p }
}

func WithManyCards() func(*Options) {
	return func(o *Options) { o.ManyCards = true }
}

func WithTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.Timeout = d }
}

func WithRunner(r Runner) func(*Options) {
	return func(o *Options) { o.Runner = r }
}

func buildOptions(optFns []func(*Options)) Options {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Retry == nil {
		p := DefaultRetryPolicy()
		opts.Retry = &p
	}
	return opts
}
