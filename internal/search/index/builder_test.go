package index

import (
	"math"
	"testing"
)

// TestBuilderRejectsIllegalFieldName verifies field names cannot
// contain the ref joiner character.
func TestBuilderRejectsIllegalFieldName(t *testing.T) {
	b := NewBuilder()
	if err := b.Field("ti/tle"); err == nil {
		t.Error("expected error for field name containing '/'")
	}
	if err := b.Field("title"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestBuilderAddMissingRef verifies documents without the reference
// field are rejected.
func TestBuilderAddMissingRef(t *testing.T) {
	b := NewBuilder()
	if err := b.Field("title"); err != nil {
		t.Fatalf("Field: %v", err)
	}
	if err := b.Add(Document{"title": "no ref here"}); err == nil {
		t.Error("expected error for document missing ref field")
	}
}

func TestBuilderBClamped(t *testing.T) {
	builder := NewBuilder()
	builder.B(-1)
	if builder.b != 0 {
		t.Errorf("b = %v, want 0", builder.b)
	}
	builder.B(2)
	if builder.b != 1 {
		t.Errorf("b = %v, want 1", builder.b)
	}
	builder.B(0.5)
	if builder.b != 0.5 {
		t.Errorf("b = %v, want 0.5", builder.b)
	}
}

// TestBuilderScoreSingleDocument pins the BM25 score of the simplest
// possible index: one document, one field, one term. With tf = 1 and
// the field length equal to the average, the score reduces to the idf,
// ln(1 + 0.5/1.5), rounded to three decimals.
func TestBuilderScoreSingleDocument(t *testing.T) {
	b := NewBuilder()
	if err := b.Field("title"); err != nil {
		t.Fatalf("Field: %v", err)
	}
	if err := b.Add(Document{"id": "1", "title": "green"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fv, ok := idx.fieldVectors["title/1"]
	if !ok {
		t.Fatal("missing field vector title/1")
	}
	elements := fv.ToSlice()
	if len(elements) != 2 || elements[0] != 0 {
		t.Fatalf("unexpected elements %v", elements)
	}

	want := math.Round(math.Log(1+(0.5/1.5))*1000) / 1000
	if elements[1] != want {
		t.Errorf("score = %v, want %v", elements[1], want)
	}
}

// TestBuilderFieldAndDocumentBoosts verifies both boosts multiply into
// the stored score.
func TestBuilderFieldAndDocumentBoosts(t *testing.T) {
	boosted := NewBuilder()
	if err := boosted.Field("title", WithBoost(10)); err != nil {
		t.Fatalf("Field: %v", err)
	}
	if err := boosted.Add(Document{"id": "1", "title": "green"}, WithDocumentBoost(2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	idx, err := boosted.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	boostedScore := idx.fieldVectors["title/1"].ToSlice()[1]

	want := math.Round(math.Log(1+(0.5/1.5))*10*2*1000) / 1000
	if boostedScore != want {
		t.Errorf("boosted score = %v, want %v", boostedScore, want)
	}
}

// TestBuilderExtractor verifies a field extractor overrides direct key
// access.
func TestBuilderExtractor(t *testing.T) {
	b := NewBuilder()
	err := b.Field("name", WithExtractor(func(doc Document) any {
		return doc["first"].(string) + " " + doc["last"].(string)
	}))
	if err != nil {
		t.Fatalf("Field: %v", err)
	}
	if err := b.Add(Document{"id": "1", "first": "Ada", "last": "Lovelace"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, ok := idx.invertedIndex["ada"]; !ok {
		t.Error("expected extracted term 'ada' in inverted index")
	}
	if _, ok := idx.invertedIndex["lovelace"]; !ok {
		t.Error("expected extracted term 'lovelace' in inverted index")
	}
}

// TestBuilderMetadataWhitelist verifies only whitelisted token metadata
// reaches the postings.
func TestBuilderMetadataWhitelist(t *testing.T) {
	b := NewBuilder()
	b.MetadataWhitelist = []string{"position"}
	if err := b.Field("title"); err != nil {
		t.Fatalf("Field: %v", err)
	}
	if err := b.Add(Document{"id": "1", "title": "hello world"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	metadata := idx.invertedIndex["world"].Fields["title"]["1"]
	if _, ok := metadata["position"]; !ok {
		t.Error("expected whitelisted position metadata")
	}
	if _, ok := metadata["index"]; ok {
		t.Error("non-whitelisted metadata leaked into posting")
	}
}

// TestBuilderUse verifies plugin functions configure the builder.
func TestBuilderUse(t *testing.T) {
	b := NewBuilder()
	called := false
	b.Use(func(builder *Builder) {
		called = true
		builder.Ref("ref")
	})
	if !called {
		t.Fatal("plugin not invoked")
	}
	if b.refField != "ref" {
		t.Errorf("refField = %q, want ref", b.refField)
	}
}

// TestBuilderNonStringRef verifies non-string reference values are
// stringified.
func TestBuilderNonStringRef(t *testing.T) {
	b := NewBuilder()
	if err := b.Field("title"); err != nil {
		t.Fatalf("Field: %v", err)
	}
	if err := b.Add(Document{"id": 42, "title": "numeric ref"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := idx.fieldVectors["title/42"]; !ok {
		t.Error("expected field vector keyed by stringified ref")
	}
}

func TestIndexFieldsOrder(t *testing.T) {
	b := NewBuilder()
	for _, name := range []string{"title", "body", "tags"} {
		if err := b.Field(name); err != nil {
			t.Fatalf("Field(%s): %v", name, err)
		}
	}
	idx, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fields := idx.Fields()
	want := []string{"title", "body", "tags"}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("fields = %v, want %v", fields, want)
		}
	}
}
