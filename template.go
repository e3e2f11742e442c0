package ankigen

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {column} references in a prompt body. Column
// names may contain anything but braces, matching what a tabular header can
// hold.
var placeholderPattern = regexp.MustCompile(`\{([^{}\n]+)\}`)

// Render substitutes {column} placeholders in template with the row's
// values. A placeholder naming a column absent from the row fails with
// MissingColumnError and aborts only that row; no partial output is returned.
func Render(template string, row Row) (string, error) {
	var missing *MissingColumnError
	out := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := strings.TrimSpace(m[1 : len(m)-1])
		value, ok := row[name]
		if !ok {
			if missing == nil {
				missing = &MissingColumnError{Column: name}
			}
			return m
		}
		return value
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// Placeholders returns the distinct column names referenced by template, in
// order of first appearance. Used to validate a template against a source
// header before any network call is made.
func Placeholders(template string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		name := strings.TrimSpace(m[1])
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
