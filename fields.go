package ankigen

// MapFields translates a candidate's model-output fields to store field
// names. It is strict: a model key named by fieldMap but absent from the
// candidate fails with MissingFieldError rather than being padded with an
// empty string, because the store would otherwise persist a malformed record.
func MapFields(candidate CardCandidate, fieldMap FieldMap) (map[string]string, error) {
	out := make(map[string]string, len(fieldMap))
	for modelKey, storeField := range fieldMap {
		value, ok := candidate.Fields[modelKey]
		if !ok {
			return nil, &MissingFieldError{Key: modelKey, Expected: fieldMap.ModelKeys()}
		}
		out[storeField] = value
	}
	return out, nil
}
