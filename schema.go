package ankigen

import (
	"fmt"
	"sort"
	"strings"
)

// CardSchema is a structural validator for model output, keyed by the
// configured field map. Each known key accepts a single string or an ordered
// sequence of strings (multi-value fields such as alternate answers); unknown
// keys, missing keys, and wrong-typed values are rejected with every problem
// enumerated, not just the first.
type CardSchema struct {
	keys map[string]struct{}
	many bool
}

// BuildSchema constructs a validator for the model-output keys of fieldMap.
// With manyCards the top-level response may be a single object or an array of
// objects, each independently checked.
func BuildSchema(fieldMap FieldMap, manyCards bool) *CardSchema {
	keys := make(map[string]struct{}, len(fieldMap))
	for k := range fieldMap {
		keys[k] = struct{}{}
	}
	return &CardSchema{keys: keys, many: manyCards}
}

// Validate checks a parsed JSON value against the schema and returns one
// normalized field mapping per card. Multi-value entries are joined with
// ", " so every downstream stage sees plain strings.
func (s *CardSchema) Validate(v any) ([]map[string]string, error) {
	switch val := v.(type) {
	case map[string]any:
		fields, problems := s.validateObject(val)
		if len(problems) > 0 {
			return nil, &SchemaValidationError{Problems: problems}
		}
		return []map[string]string{fields}, nil
	case []any:
		if !s.many {
			return nil, &SchemaValidationError{
				Problems: []string{"top-level array not allowed: template expects one card per response"},
			}
		}
		if len(val) == 0 {
			return nil, &SchemaValidationError{Problems: []string{"top-level array is empty"}}
		}
		var all []map[string]string
		var problems []string
		for i, item := range val {
			obj, ok := item.(map[string]any)
			if !ok {
				problems = append(problems, fmt.Sprintf("card %d: not a JSON object", i))
				continue
			}
			fields, objProblems := s.validateObject(obj)
			for _, p := range objProblems {
				problems = append(problems, fmt.Sprintf("card %d: %s", i, p))
			}
			if len(objProblems) == 0 {
				all = append(all, fields)
			}
		}
		if len(problems) > 0 {
			return nil, &SchemaValidationError{Problems: problems}
		}
		return all, nil
	default:
		return nil, &SchemaValidationError{Problems: []string{"top-level value is not an object or array"}}
	}
}

// validateObject checks one card object, collecting every offending key.
func (s *CardSchema) validateObject(obj map[string]any) (map[string]string, []string) {
	var problems []string
	fields := make(map[string]string, len(s.keys))

	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, known := s.keys[name]; !known {
			problems = append(problems, fmt.Sprintf("unknown key %q", name))
			continue
		}
		value, err := normalizeValue(obj[name])
		if err != nil {
			problems = append(problems, fmt.Sprintf("key %q: %v", name, err))
			continue
		}
		if value == "" {
			problems = append(problems, fmt.Sprintf("key %q: empty value", name))
			continue
		}
		fields[name] = value
	}

	required := make([]string, 0, len(s.keys))
	for k := range s.keys {
		required = append(required, k)
	}
	sort.Strings(required)
	for _, k := range required {
		if _, present := obj[k]; !present {
			problems = append(problems, fmt.Sprintf("missing key %q", k))
		}
	}

	return fields, problems
}

// normalizeValue accepts a string or a sequence of strings; sequences are
// joined with ", ".
func normalizeValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []any:
		parts := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return "", fmt.Errorf("element %d is not a string", i)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), nil
	default:
		return "", fmt.Errorf("expected string or array of strings, got %T", v)
	}
}
