// Package index implements the inverted index at the centre of the
// search engine: a Builder that scores documents per field with BM25
// into sparse vectors, an immutable Index whose executor expands query
// clauses against the corpus token set and ranks matches by cosine
// similarity, and a stable JSON serialisation of the whole structure.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/query"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenset"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/vector"
)

// Index is an immutable built index. It is safe for concurrent
// read-only use; all state is finalised when the Builder emits it.
type Index struct {
	invertedIndex InvertedIndex
	fieldVectors  map[string]*vector.Vector
	tokenSet      *tokenset.TokenSet
	fields        []string
	pipeline      *pipeline.Pipeline
}

// Result is one ranked search hit.
type Result struct {
	Ref       string
	Score     float64
	MatchData *MatchData
}

// Fields returns the indexed field names in definition order.
func (idx *Index) Fields() []string {
	return append([]string(nil), idx.fields...)
}

// TermCount returns the number of distinct terms in the inverted index.
func (idx *Index) TermCount() int {
	return len(idx.invertedIndex)
}

// Search parses the query string with the compact query syntax and
// executes it.
func (idx *Index) Search(queryString string) ([]Result, error) {
	return idx.Query(func(q *query.Query) error {
		_, err := query.NewParser(queryString, q).Parse()
		return err
	})
}

// Query executes a query assembled by fn, returning results sorted by
// descending score. Each clause's term is expanded through the search
// pipeline and the corpus token set; matches accumulate into per-field
// query vectors which are scored against the stored field vectors.
func (idx *Index) Query(fn func(*query.Query) error) ([]Result, error) {
	q := query.New(append([]string(nil), idx.fields...))
	if err := fn(q); err != nil {
		return nil, err
	}

	matchingFields := make(map[string]*MatchData)
	queryVectors := make(map[string]*vector.Vector, len(idx.fields))
	termFieldCache := make(map[string]struct{})
	requiredMatches := make(map[string]*Set)
	prohibitedMatches := make(map[string]*Set)

	for _, field := range idx.fields {
		queryVectors[field] = vector.New()
	}

	for i := range q.Clauses {
		clause := q.Clauses[i]
		clauseMatches := EmptySet

		// Pipeline expansion may produce several terms for one clause,
		// e.g. a splitting stage. Wildcard terms bypass the pipeline so
		// the '*' survives.
		var terms []string
		if clause.UsePipeline {
			terms = idx.pipeline.RunString(clause.Term, tokenizer.Metadata{"fields": clause.Fields})
		} else {
			terms = []string{clause.Term}
		}

		for _, term := range terms {
			termClause := clause
			termClause.Term = term
			termTokenSet := tokenset.FromClause(&termClause)

			expandedTerms := termTokenSet.Intersect(idx.tokenSet).ToArray()

			// A required term with no corpus matches can't be satisfied
			// by any document, so the whole clause fails.
			if len(expandedTerms) == 0 && clause.Presence == query.PresenceRequired {
				for _, field := range clause.Fields {
					requiredMatches[field] = EmptySet
				}
				break
			}

			for _, expandedTerm := range expandedTerms {
				posting := idx.invertedIndex[expandedTerm]

				for _, field := range clause.Fields {
					fieldPosting := posting.Fields[field]
					matchingDocumentRefs := make([]string, 0, len(fieldPosting))
					for docRef := range fieldPosting {
						matchingDocumentRefs = append(matchingDocumentRefs, docRef)
					}
					termField := expandedTerm + fieldRefJoiner + field

					if clause.Presence == query.PresenceRequired {
						clauseMatches = clauseMatches.Union(NewSet(matchingDocumentRefs))
						if _, ok := requiredMatches[field]; !ok {
							requiredMatches[field] = CompleteSet
						}
					}

					if clause.Presence == query.PresenceProhibited {
						existing, ok := prohibitedMatches[field]
						if !ok {
							existing = EmptySet
						}
						prohibitedMatches[field] = existing.Union(NewSet(matchingDocumentRefs))

						// Prohibited terms never contribute to scoring
						// or match data.
						continue
					}

					if err := queryVectors[field].Upsert(posting.TermIndex, clause.Boost, sumScores); err != nil {
						return nil, err
					}

					// A (term, field) pair already seen in this query
					// only needed its vector contribution above.
					if _, seen := termFieldCache[termField]; seen {
						continue
					}

					for _, docRef := range matchingDocumentRefs {
						matchingFieldRef := FieldRef{DocRef: docRef, FieldName: field}.String()
						metadata := fieldPosting[docRef]
						if existing, ok := matchingFields[matchingFieldRef]; ok {
							existing.Add(expandedTerm, field, metadata)
						} else {
							md := NewMatchData()
							md.Add(expandedTerm, field, metadata)
							matchingFields[matchingFieldRef] = md
						}
					}
					termFieldCache[termField] = struct{}{}
				}
			}
		}

		if clause.Presence == query.PresenceRequired {
			for _, field := range clause.Fields {
				existing, ok := requiredMatches[field]
				if !ok {
					existing = CompleteSet
				}
				requiredMatches[field] = existing.Intersect(clauseMatches)
			}
		}
	}

	allRequiredMatches := CompleteSet
	allProhibitedMatches := EmptySet
	for _, field := range idx.fields {
		if matches, ok := requiredMatches[field]; ok {
			allRequiredMatches = allRequiredMatches.Intersect(matches)
		}
		if matches, ok := prohibitedMatches[field]; ok {
			allProhibitedMatches = allProhibitedMatches.Union(matches)
		}
	}

	// A fully negated query matches every document not excluded, with
	// score 0, so seed every field ref with empty match data.
	if q.IsNegated() {
		matchingFields = make(map[string]*MatchData, len(idx.fieldVectors))
		for fieldRef := range idx.fieldVectors {
			matchingFields[fieldRef] = NewMatchData()
		}
	}

	matchingFieldRefs := make([]string, 0, len(matchingFields))
	for fieldRef := range matchingFields {
		matchingFieldRefs = append(matchingFieldRefs, fieldRef)
	}
	sort.Strings(matchingFieldRefs)

	results := make([]Result, 0, len(matchingFieldRefs))
	resultByRef := make(map[string]int, len(matchingFieldRefs))

	for _, matchingFieldRef := range matchingFieldRefs {
		fieldRef, err := ParseFieldRef(matchingFieldRef)
		if err != nil {
			return nil, err
		}

		if !allRequiredMatches.Contains(fieldRef.DocRef) {
			continue
		}
		if allProhibitedMatches.Contains(fieldRef.DocRef) {
			continue
		}

		score := queryVectors[fieldRef.FieldName].Similarity(idx.fieldVectors[matchingFieldRef])

		if pos, ok := resultByRef[fieldRef.DocRef]; ok {
			results[pos].Score += score
			results[pos].MatchData.Combine(matchingFields[matchingFieldRef])
		} else {
			resultByRef[fieldRef.DocRef] = len(results)
			results = append(results, Result{
				Ref:       fieldRef.DocRef,
				Score:     score,
				MatchData: matchingFields[matchingFieldRef],
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Ref < results[j].Ref
	})
	return results, nil
}

func sumScores(existing, incoming float64) (float64, error) {
	return existing + incoming, nil
}
