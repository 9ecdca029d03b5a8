package index

// MatchData records, for one search result, which terms matched in
// which fields and the metadata captured for each occurrence. The
// structure nests term, then field, then metadata key.
type MatchData struct {
	Metadata map[string]map[string]map[string][]any
}

// NewMatchData returns an empty MatchData.
func NewMatchData() *MatchData {
	return &MatchData{Metadata: make(map[string]map[string]map[string][]any)}
}

// Add records metadata for a term matched in a field. Value lists are
// copied so later mutation of the inverted index does not show through
// to results.
func (m *MatchData) Add(term, field string, metadata map[string][]any) {
	fields, ok := m.Metadata[term]
	if !ok {
		fields = make(map[string]map[string][]any)
		m.Metadata[term] = fields
	}

	keys, ok := fields[field]
	if !ok {
		keys = make(map[string][]any, len(metadata))
		fields[field] = keys
	}

	for key, values := range metadata {
		keys[key] = append(keys[key], values...)
	}
}

// Combine merges another MatchData into this one, concatenating the
// per-key value lists.
func (m *MatchData) Combine(other *MatchData) {
	for term, fields := range other.Metadata {
		for field, keys := range fields {
			m.Add(term, field, keys)
		}
	}
}
