package tokenizer

import (
	"testing"
)

func tokenStrings(toks []*Token) []string {
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		out = append(out, tok.String())
	}
	return out
}

// TestTokenizeSplitsAndLowercases verifies splitting on whitespace and
// hyphens with lower-cased output.
func TestTokenizeSplitsAndLowercases(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "foo bar", []string{"foo", "bar"}},
		{"uppercase", "Foo BAR", []string{"foo", "bar"}},
		{"hyphen", "take-away", []string{"take", "away"}},
		{"multiple spaces", "foo    bar", []string{"foo", "bar"}},
		{"leading and trailing", "  foo bar  ", []string{"foo", "bar"}},
		{"tabs and newlines", "foo\tbar\nbaz", []string{"foo", "bar", "baz"}},
		{"single word", "word", []string{"word"}},
		{"empty", "", nil},
		{"only separators", " - - ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenStrings(Tokenize(tt.input, Metadata{}))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

// TestTokenizePositions verifies each token records its rune offset and
// length in the source string.
func TestTokenizePositions(t *testing.T) {
	toks := Tokenize("foo  bar", Metadata{})
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(toks))
	}

	wantPositions := [][]int{{0, 3}, {5, 3}}
	for i, tok := range toks {
		pos, ok := tok.Metadata["position"].([]int)
		if !ok {
			t.Fatalf("token %d missing position metadata", i)
		}
		if pos[0] != wantPositions[i][0] || pos[1] != wantPositions[i][1] {
			t.Errorf("token %d position = %v, want %v", i, pos, wantPositions[i])
		}
		if idx := tok.Metadata["index"]; idx != i {
			t.Errorf("token %d index metadata = %v", i, idx)
		}
	}
}

func TestTokenizeNil(t *testing.T) {
	if toks := Tokenize(nil, Metadata{}); len(toks) != 0 {
		t.Errorf("expected no tokens for nil, got %v", tokenStrings(toks))
	}
}

// TestTokenizeSlice verifies slice values tokenise each element whole,
// without splitting on separators.
func TestTokenizeSlice(t *testing.T) {
	toks := Tokenize([]any{"New York", "Berlin"}, Metadata{})
	got := tokenStrings(toks)
	want := []string{"new york", "berlin"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("element %d: expected %q, got %q", i, want[i], got[i])
		}
		if idx := toks[i].Metadata["index"]; idx != i {
			t.Errorf("element %d index metadata = %v", i, idx)
		}
	}
}

func TestTokenizeNonString(t *testing.T) {
	got := tokenStrings(Tokenize(42, Metadata{}))
	if len(got) != 1 || got[0] != "42" {
		t.Errorf("expected [42], got %v", got)
	}
}

// TestMetadataIsolation verifies tokens do not share metadata maps with
// the seed or each other.
func TestMetadataIsolation(t *testing.T) {
	seed := Metadata{"fields": []string{"title"}}
	toks := Tokenize("foo bar", seed)

	toks[0].Metadata["extra"] = true
	if _, leaked := toks[1].Metadata["extra"]; leaked {
		t.Error("metadata mutation leaked between tokens")
	}
	if _, leaked := seed["extra"]; leaked {
		t.Error("metadata mutation leaked into the seed map")
	}
}

func TestTokenUpdateAndClone(t *testing.T) {
	tok := NewToken("foo", Metadata{"a": 1})

	clone := tok.Clone(func(str string, _ Metadata) string { return str + "s" })
	if clone.String() != "foos" || tok.String() != "foo" {
		t.Errorf("clone transformed original: %q / %q", tok.String(), clone.String())
	}

	tok.Update(func(str string, _ Metadata) string { return "bar" })
	if tok.String() != "bar" {
		t.Errorf("update failed: %q", tok.String())
	}
	if clone.String() != "foos" {
		t.Errorf("update leaked into clone: %q", clone.String())
	}
}
