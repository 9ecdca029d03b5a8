package index

import (
	"sort"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/lang"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/query"
)

// newStudyIndex builds the three-document fixture used throughout the
// query tests, with the default English pipelines.
func newStudyIndex(t *testing.T) *Index {
	t.Helper()

	b := NewBuilder()
	b.Ref("id")
	b.MetadataWhitelist = []string{"position"}
	b.Pipeline.Add(lang.Trimmer, lang.StopWordFilter, lang.Stemmer)
	b.SearchPipeline.Add(lang.Stemmer)

	for _, field := range []string{"title", "body"} {
		if err := b.Field(field); err != nil {
			t.Fatalf("Field(%s): %v", field, err)
		}
	}

	docs := []Document{
		{
			"id":    "a",
			"title": "Mr. Green kills Colonel Mustard",
			"body":  "Mr. Green killed Colonel Mustard in the study with the candlestick. Mr. Green is not a very nice fellow.",
		},
		{
			"id":    "b",
			"title": "Plumb waters plant",
			"body":  "Professor Plumb has a green plant in his study",
		},
		{
			"id":    "c",
			"title": "Scarlett helps Professor",
			"body":  "Miss Scarlett watered Professor Plumbs green plant while he was away from his office last week.",
		},
	}
	for _, doc := range docs {
		if err := b.Add(doc); err != nil {
			t.Fatalf("Add(%v): %v", doc["id"], err)
		}
	}

	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

func refsOf(results []Result) []string {
	refs := make([]string, 0, len(results))
	for _, r := range results {
		refs = append(refs, r.Ref)
	}
	return refs
}

func matchedTerms(r Result) []string {
	terms := make([]string, 0, len(r.MatchData.Metadata))
	for term := range r.MatchData.Metadata {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

func assertRefs(t *testing.T, results []Result, want ...string) {
	t.Helper()
	got := refsOf(results)
	if len(got) != len(want) {
		t.Fatalf("expected refs %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected refs %v, got %v", want, got)
		}
	}
}

// TestSearchSingleTerm verifies a plain term matches every containing
// document, ranked by score with the densest occurrence first.
func TestSearchSingleTerm(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("green")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	assertRefs(t, results, "a", "b", "c")
	if results[0].Score <= results[1].Score || results[1].Score <= results[2].Score {
		t.Errorf("scores not strictly descending: %v", results)
	}

	terms := matchedTerms(results[0])
	if len(terms) != 1 || terms[0] != "green" {
		t.Errorf("expected matched term [green], got %v", terms)
	}
}

// TestSearchTrailingWildcard verifies 'pl*' expands to every corpus
// term with that prefix.
func TestSearchTrailingWildcard(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("pl*")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	assertRefs(t, results, "b", "c")
	terms := matchedTerms(results[0])
	if len(terms) != 2 || terms[0] != "plant" || terms[1] != "plumb" {
		t.Errorf("expected matched terms [plant plumb], got %v", terms)
	}
}

// TestSearchLeadingWildcard verifies '*ant' matches terms by suffix.
func TestSearchLeadingWildcard(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("*ant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	assertRefs(t, results, "b", "c")
	for _, r := range results {
		terms := matchedTerms(r)
		if len(terms) != 1 || terms[0] != "plant" {
			t.Errorf("ref %s: expected matched terms [plant], got %v", r.Ref, terms)
		}
	}
}

// TestSearchFuzzy verifies 'plint~2' reaches 'plant' within the edit
// budget but not the more distant 'plumb'.
func TestSearchFuzzy(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("plint~2")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	assertRefs(t, results, "b", "c")
	for _, r := range results {
		terms := matchedTerms(r)
		if len(terms) != 1 || terms[0] != "plant" {
			t.Errorf("ref %s: expected matched terms [plant], got %v", r.Ref, terms)
		}
	}
}

// TestSearchFieldScoped verifies 'title:plant' only consults the title
// field.
func TestSearchFieldScoped(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("title:plant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertRefs(t, results, "b")
}

// TestSearchFullyNegated verifies a query of only prohibited clauses
// returns every non-excluded document with score zero.
func TestSearchFullyNegated(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("-plant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	assertRefs(t, results, "a")
	if results[0].Score != 0 {
		t.Errorf("expected score 0, got %v", results[0].Score)
	}
}

// TestSearchRequiredTerm verifies a required clause filters to
// documents containing the term in any searched field, while optional
// clauses still contribute to scoring.
func TestSearchRequiredTerm(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("green +plant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	assertRefs(t, results, "b", "c")
	terms := matchedTerms(results[0])
	if len(terms) != 2 || terms[0] != "green" || terms[1] != "plant" {
		t.Errorf("expected matched terms [green plant], got %v", terms)
	}
}

// TestSearchRequiredTermMissingFromCorpus verifies a required term with
// no corpus expansion fails the whole query.
func TestSearchRequiredTermMissingFromCorpus(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("green +qwertyuiop")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", refsOf(results))
	}
}

// TestSearchProhibitedTerm verifies prohibited terms exclude documents
// globally while the rest of the query scores normally.
func TestSearchProhibitedTerm(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("green -plant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	assertRefs(t, results, "a")
	if results[0].Score == 0 {
		t.Error("expected optional term to contribute to score")
	}
}

// TestSearchRequiredFieldScoped verifies presence and field scoping
// combine.
func TestSearchRequiredFieldScoped(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("+title:plant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertRefs(t, results, "b")
}

// TestSearchEmptyQuery verifies an empty query behaves as fully
// negated: every document, score zero, in ref order.
func TestSearchEmptyQuery(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	assertRefs(t, results, "a", "b", "c")
	for _, r := range results {
		if r.Score != 0 {
			t.Errorf("ref %s: expected score 0, got %v", r.Ref, r.Score)
		}
	}
}

// TestSearchNoMatches verifies an optional term absent from the corpus
// yields no results rather than an error.
func TestSearchNoMatches(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("zebra")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", refsOf(results))
	}
}

// TestSearchParseErrorSurfaces verifies malformed query strings return
// the parser's error.
func TestSearchParseErrorSurfaces(t *testing.T) {
	idx := newStudyIndex(t)
	if _, err := idx.Search("author:green"); err == nil {
		t.Error("expected parse error for unknown field")
	}
}

// TestSearchEqualsQuery verifies the string syntax and the programmatic
// query builder produce identical results.
func TestSearchEqualsQuery(t *testing.T) {
	idx := newStudyIndex(t)

	searched, err := idx.Search("green plant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	queried, err := idx.Query(func(q *query.Query) error {
		q.Term("green")
		q.Term("plant")
		return nil
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if len(searched) != len(queried) {
		t.Fatalf("result count mismatch: %d vs %d", len(searched), len(queried))
	}
	for i := range searched {
		if searched[i].Ref != queried[i].Ref || searched[i].Score != queried[i].Score {
			t.Errorf("result %d differs: %+v vs %+v", i, searched[i], queried[i])
		}
	}
}

// TestSearchPositionsInMatchData verifies whitelisted token positions
// ride through to results.
func TestSearchPositionsInMatchData(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Search("title:plant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	positions := results[0].MatchData.Metadata["plant"]["title"]["position"]
	if len(positions) != 1 {
		t.Fatalf("expected 1 position entry, got %v", positions)
	}
	pos, ok := positions[0].([]int)
	if !ok || pos[0] != 13 || pos[1] != 5 {
		t.Errorf("expected position [13 5], got %v", positions[0])
	}
}

// TestQueryBuilderWildcardFlags verifies programmatic wildcard flags
// expand terms the same way literal '*' does.
func TestQueryBuilderWildcardFlags(t *testing.T) {
	idx := newStudyIndex(t)

	results, err := idx.Query(func(q *query.Query) error {
		q.Term("pl", func(c *query.Clause) {
			c.Wildcard = query.WildcardTrailing
			c.UsePipeline = false
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	assertRefs(t, results, "b", "c")
}

// TestPrototypeNamedTerms verifies terms and refs that collide with
// language builtin member names index and search cleanly.
func TestPrototypeNamedTerms(t *testing.T) {
	b := NewBuilder()
	b.Ref("id")
	if err := b.Field("title"); err != nil {
		t.Fatalf("Field: %v", err)
	}

	docs := []Document{
		{"id": "constructor", "title": "constructor prototype valueof"},
		{"id": "other", "title": "ordinary words here"},
	}
	for _, doc := range docs {
		if err := b.Add(doc); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	results, err := idx.Search("constructor")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertRefs(t, results, "constructor")

	results, err = idx.Search("prototype")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertRefs(t, results, "constructor")
}
