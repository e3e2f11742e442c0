package ankigen

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Template is a card template file: YAML front matter describing the target
// deck, note type, field map, and optional quality check, followed by the
// prompt body with {column} placeholders.
//
//	---
//	deck: Spanish
//	noteType: Basic
//	fields:
//	  word: Front
//	  translation: Back
//	check:
//	  field: translation
//	  prompt: Is "{translation}" a correct translation of "{word}"?
//	---
//	Translate the Spanish word {word} into English.
//
// Deck and noteType may be omitted; the caller is expected to supply them
// another way before preflight.
type Template struct {
	Deck     string              `yaml:"deck"`
	NoteType string              `yaml:"noteType"`
	Fields   FieldMap            `yaml:"fields" validate:"required"`
	Check    *QualityCheckConfig `yaml:"check" validate:"omitempty,structonly"`
	Body     string              `yaml:"-"`
}

const frontMatterDelimiter = "---"

var templateValidator = validator.New()

// ParseTemplate parses template file content. The front matter is mandatory
// since it carries the field map; a missing or unterminated block is an
// error.
func ParseTemplate(content string) (*Template, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	lines := strings.SplitN(content, "\n", 2)
	if strings.TrimSpace(lines[0]) != frontMatterDelimiter {
		return nil, fmt.Errorf("template must start with a %q front matter block", frontMatterDelimiter)
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("template front matter is not terminated by %q", frontMatterDelimiter)
	}

	rest := lines[1]
	meta, body, found := cutLine(rest, frontMatterDelimiter)
	if !found {
		return nil, fmt.Errorf("template front matter is not terminated by %q", frontMatterDelimiter)
	}

	var tmpl Template
	if err := yaml.Unmarshal([]byte(meta), &tmpl); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}
	tmpl.Body = strings.TrimSpace(body)

	if err := templateValidator.Struct(&tmpl); err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}
	if err := tmpl.Fields.Validate(); err != nil {
		return nil, err
	}
	if tmpl.Check != nil {
		if err := templateValidator.Struct(tmpl.Check); err != nil {
			return nil, fmt.Errorf("invalid check block: %w", err)
		}
	}
	if tmpl.Body == "" {
		return nil, fmt.Errorf("template body is empty")
	}
	return &tmpl, nil
}

// LoadTemplate reads and parses a template file.
func LoadTemplate(path string) (*Template, error) {
	if err := guardTextFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tmpl, err := ParseTemplate(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tmpl, nil
}

// cutLine splits s around the first line that equals sep (ignoring
// surrounding whitespace).
func cutLine(s, sep string) (before, after string, found bool) {
	offset := 0
	for {
		line := s[offset:]
		end := strings.Index(line, "\n")
		if end == -1 {
			if strings.TrimSpace(line) == sep {
				return s[:offset], "", true
			}
			return s, "", false
		}
		if strings.TrimSpace(line[:end]) == sep {
			return s[:offset], s[offset+end+1:], true
		}
		offset += end + 1
	}
}
