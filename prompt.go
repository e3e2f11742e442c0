package ankigen

import (
	"fmt"
	"strings"

	"github.com/tyler-sommer/stick"
)

// Scaffold template tags.
const (
	scaffoldGenerate = "generate"
	scaffoldCheck    = "check"
)

// defaultGenerateScaffold is the instruction wrapped around each rendered
// row prompt. It names the exact JSON keys the response must use and the
// output mode (single object or array of objects).
const defaultGenerateScaffold = `You produce flashcard content.
{% if many %}Respond with a JSON array of objects. Each object{% else %}Respond with a single JSON object. It{% endif %} must use exactly these keys: {{ key_list }}.
Every value must be a non-empty string, or an array of strings when several alternatives apply.
Do not add keys, commentary, or markdown fences.`

// defaultCheckScaffold is the instruction wrapped around the quality-check
// prompt. The response shape is fixed.
const defaultCheckScaffold = `You review a single flashcard for quality.
Respond with a single JSON object with exactly two keys:
"is_valid" (boolean) and "reason" (string explaining the verdict).
Do not add keys, commentary, or markdown fences.`

// PromptScaffold renders the instruction templates for generation and
// quality-check calls. Templates use Twig syntax via stick and can be
// overridden for custom instruction wording.
type PromptScaffold struct {
	env       *stick.Env
	templates map[string]string
}

// ScaffoldOption customizes a PromptScaffold.
type ScaffoldOption func(*PromptScaffold) error

// WithScaffoldTemplates overrides the built-in instruction templates.
func WithScaffoldTemplates(m map[string]string) ScaffoldOption {
	return func(p *PromptScaffold) error {
		for tag, tpl := range m {
			if _, known := p.templates[tag]; !known {
				return fmt.Errorf("unknown scaffold template %q", tag)
			}
			p.templates[tag] = tpl
		}
		return nil
	}
}

// NewPromptScaffold builds a scaffold from the built-in templates plus
// options.
func NewPromptScaffold(opts ...ScaffoldOption) (*PromptScaffold, error) {
	p := &PromptScaffold{
		env: stick.New(nil),
		templates: map[string]string{
			scaffoldGenerate: defaultGenerateScaffold,
			scaffoldCheck:    defaultCheckScaffold,
		},
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Generation renders the system instruction for a generation call.
func (p *PromptScaffold) Generation(keys []string, many bool) (string, error) {
	return p.render(scaffoldGenerate, map[string]stick.Value{
		"keys":     keys,
		"key_list": strings.Join(keys, ", "),
		"many":     many,
	})
}

// QualityCheck renders the system instruction for a quality-check call.
func (p *PromptScaffold) QualityCheck() (string, error) {
	return p.render(scaffoldCheck, map[string]stick.Value{})
}

func (p *PromptScaffold) render(tag string, ctx map[string]stick.Value) (string, error) {
	tpl, ok := p.templates[tag]
	if !ok {
		return "", fmt.Errorf("template %q not found", tag)
	}
	var out strings.Builder
	if err := p.env.Execute(tpl, &out, ctx); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return out.String(), nil
}
