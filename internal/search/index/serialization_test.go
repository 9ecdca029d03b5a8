package index

import (
	"encoding/json"
	"sort"
	"testing"
)

// roundTrip serialises idx to JSON bytes and loads a fresh index back
// out of them, exercising the full wire path.
func roundTrip(t *testing.T, idx *Index) *Index {
	t.Helper()

	serialized, err := idx.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	data, err := json.Marshal(serialized)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded SerializedIndex
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	loaded, err := Load(&decoded)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return loaded
}

// TestSerializationRoundTrip verifies a loaded index answers queries
// identically to the index it was saved from.
func TestSerializationRoundTrip(t *testing.T) {
	original := newStudyIndex(t)
	loaded := roundTrip(t, original)

	for _, queryString := range []string{"green", "pl*", "plint~2", "title:plant", "green -plant"} {
		want, err := original.Search(queryString)
		if err != nil {
			t.Fatalf("Search(%q) on original: %v", queryString, err)
		}
		got, err := loaded.Search(queryString)
		if err != nil {
			t.Fatalf("Search(%q) on loaded: %v", queryString, err)
		}

		if len(got) != len(want) {
			t.Fatalf("%q: result count %d, want %d", queryString, len(got), len(want))
		}
		for i := range want {
			if got[i].Ref != want[i].Ref || got[i].Score != want[i].Score {
				t.Errorf("%q result %d: got %s/%v, want %s/%v",
					queryString, i, got[i].Ref, got[i].Score, want[i].Ref, want[i].Score)
			}
		}
	}
}

// TestSerializationPreservesFields verifies field order and the search
// pipeline labels survive the wire format.
func TestSerializationPreservesFields(t *testing.T) {
	original := newStudyIndex(t)
	loaded := roundTrip(t, original)

	want := original.Fields()
	got := loaded.Fields()
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fields = %v, want %v", got, want)
		}
	}
}

// TestSerializedInvertedIndexSorted verifies ToJSON emits postings in
// lexicographic term order, which Load depends on to rebuild the token
// set.
func TestSerializedInvertedIndexSorted(t *testing.T) {
	idx := newStudyIndex(t)
	serialized, err := idx.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	terms := make([]string, 0, len(serialized.InvertedIndex))
	for _, posting := range serialized.InvertedIndex {
		terms = append(terms, posting.Term)
	}
	if !sort.StringsAreSorted(terms) {
		t.Errorf("inverted index terms not sorted: %v", terms)
	}
}

// TestSerializedFieldVectorJSON verifies the [ref, elements] pair shape
// on the wire.
func TestSerializedFieldVectorJSON(t *testing.T) {
	fv := SerializedFieldVector{FieldRef: "title/1", Elements: []float64{0, 0.288}}
	data, err := json.Marshal(fv)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `["title/1",[0,0.288]]` {
		t.Errorf("unexpected JSON %s", data)
	}

	var decoded SerializedFieldVector
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.FieldRef != fv.FieldRef || len(decoded.Elements) != 2 || decoded.Elements[1] != 0.288 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

// TestSerializedPostingJSON verifies the [term, posting] pair shape and
// that the term's vector coordinate rides under "_index".
func TestSerializedPostingJSON(t *testing.T) {
	posting := SerializedPosting{
		Term:      "plant",
		TermIndex: 7,
		Fields: map[string]map[string]map[string][]any{
			"title": {"b": {"position": {[]any{13.0, 5.0}}}},
		},
	}
	data, err := json.Marshal(posting)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		t.Fatalf("Unmarshal pair: %v", err)
	}
	if len(pair) != 2 {
		t.Fatalf("expected [term, posting] pair, got %d values", len(pair))
	}

	var decoded SerializedPosting
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Term != "plant" || decoded.TermIndex != 7 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
	if _, ok := decoded.Fields["title"]["b"]; !ok {
		t.Error("expected title/b document in decoded posting")
	}
	if _, ok := decoded.Fields["_index"]; ok {
		t.Error("_index leaked into the fields map")
	}
}

// TestSerializedPostingMalformed verifies a non-pair entry is rejected.
func TestSerializedPostingMalformed(t *testing.T) {
	var posting SerializedPosting
	if err := json.Unmarshal([]byte(`["plant"]`), &posting); err == nil {
		t.Error("expected error for single-element entry")
	}
}

// TestLoadUnregisteredPipelineLabel verifies loading fails when a saved
// pipeline stage is not registered in this process.
func TestLoadUnregisteredPipelineLabel(t *testing.T) {
	idx := newStudyIndex(t)
	serialized, err := idx.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	serialized.Pipeline = append(serialized.Pipeline, "no-such-stage")

	if _, err := Load(serialized); err == nil {
		t.Error("expected error for unregistered pipeline label")
	}
}

// TestLoadVersionMismatch verifies a differing schema version warns but
// still loads.
func TestLoadVersionMismatch(t *testing.T) {
	idx := newStudyIndex(t)
	serialized, err := idx.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	serialized.Version = "0.9.9"

	loaded, err := Load(serialized)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	results, err := loaded.Search("green")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertRefs(t, results, "a", "b", "c")
}
