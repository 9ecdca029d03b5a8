package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/query"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenset"
)

// BenchmarkQueryParse measures query parsing latency for queries of
// varying complexity.
func BenchmarkQueryParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "embedded search"},
		{"field_scoped", "title:search body:engine"},
		{"wildcard", "sear* *ing"},
		{"fuzzy", "serach~2 engin~1"},
		{"presence", "+search -deprecated analytics"},
		{"boosted", "search^10 engine^2"},
		{"long", "embedded search engine indexing query processing ranking caching pipeline"},
	}

	fields := []string{"title", "body"}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				parsed, err := query.NewParser(q.query, query.New(fields)).Parse()
				if err != nil {
					b.Fatal(err)
				}
				_ = parsed
			}
		})
	}
}

// BenchmarkTokenSetFromString measures automaton construction for plain
// and wildcard terms.
func BenchmarkTokenSetFromString(b *testing.B) {
	terms := []struct {
		name string
		term string
	}{
		{"plain", "searching"},
		{"leading_wildcard", "*ing"},
		{"trailing_wildcard", "search*"},
		{"inner_wildcard", "se*ing"},
	}
	for _, tc := range terms {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				ts := tokenset.FromString(tc.term)
				_ = ts
			}
		})
	}
}

// BenchmarkTokenSetFromFuzzyString measures fuzzy automaton construction
// at increasing edit distances. The state count grows quickly with
// distance, which bounds how large a distance stays practical.
func BenchmarkTokenSetFromFuzzyString(b *testing.B) {
	for _, distance := range []int{1, 2, 3} {
		b.Run(fmt.Sprintf("distance_%d", distance), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				ts := tokenset.FromFuzzyString("searching", distance)
				_ = ts
			}
		})
	}
}

// BenchmarkTokenSetIntersect measures matching a query automaton against
// a vocabulary automaton of increasing size.
func BenchmarkTokenSetIntersect(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, size := range sizes {
		words := make([]string, 0, size)
		for i := 0; i < size; i++ {
			words = append(words, fmt.Sprintf("term%06d", i))
		}
		vocab, err := tokenset.FromArray(words)
		if err != nil {
			b.Fatal(err)
		}

		b.Run(fmt.Sprintf("vocab_%d/exact", size), func(b *testing.B) {
			pattern := tokenset.FromString("term000050")
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				matched := pattern.Intersect(vocab)
				_ = matched
			}
		})
		b.Run(fmt.Sprintf("vocab_%d/wildcard", size), func(b *testing.B) {
			pattern := tokenset.FromString("term0000*")
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				matched := pattern.Intersect(vocab)
				_ = matched
			}
		})
		b.Run(fmt.Sprintf("vocab_%d/fuzzy", size), func(b *testing.B) {
			pattern := tokenset.FromFuzzyString("term000050", 1)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				matched := pattern.Intersect(vocab)
				_ = matched
			}
		})
	}
}

// BenchmarkSearchQueryShapes measures end-to-end search latency for the
// query shapes the executor special-cases.
func BenchmarkSearchQueryShapes(b *testing.B) {
	idx := buildCorpus(b, 10000)

	queries := []struct {
		name  string
		query string
	}{
		{"single_term", "search"},
		{"multi_term", "search engine ranking"},
		{"field_scoped", "title:search"},
		{"wildcard", "sear*"},
		{"fuzzy", "serach~1"},
		{"presence", "+search -cache"},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				results, err := idx.Search(q.query)
				if err != nil {
					b.Fatal(err)
				}
				_ = results
			}
		})
	}
}
