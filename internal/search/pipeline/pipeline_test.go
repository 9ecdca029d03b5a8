package pipeline

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenizer"
)

var (
	upcase = func(token *tokenizer.Token, _ int, _ []*tokenizer.Token) []*tokenizer.Token {
		return []*tokenizer.Token{token.Update(func(str string, _ tokenizer.Metadata) string {
			return strings.ToUpper(str)
		})}
	}

	dropShort = func(token *tokenizer.Token, _ int, _ []*tokenizer.Token) []*tokenizer.Token {
		if len(token.String()) < 3 {
			return nil
		}
		return []*tokenizer.Token{token}
	}

	duplicate = func(token *tokenizer.Token, _ int, _ []*tokenizer.Token) []*tokenizer.Token {
		return []*tokenizer.Token{token, token.Clone(nil)}
	}
)

func init() {
	Register(upcase, "upcase")
	Register(dropShort, "dropShort")
	Register(duplicate, "duplicate")
}

func tokens(strs ...string) []*tokenizer.Token {
	out := make([]*tokenizer.Token, 0, len(strs))
	for _, s := range strs {
		out = append(out, tokenizer.NewToken(s, tokenizer.Metadata{}))
	}
	return out
}

func strsOf(toks []*tokenizer.Token) []string {
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		out = append(out, tok.String())
	}
	return out
}

// TestRunAppliesStagesInOrder verifies each stage sees the previous
// stage's output.
func TestRunAppliesStagesInOrder(t *testing.T) {
	p := New()
	p.Add(dropShort, upcase)

	got := strsOf(p.Run(tokens("go", "gopher")))
	if len(got) != 1 || got[0] != "GOPHER" {
		t.Errorf("expected [GOPHER], got %v", got)
	}
}

// TestRunExpansion verifies a 1:N stage feeds every produced token to
// later stages.
func TestRunExpansion(t *testing.T) {
	p := New()
	p.Add(duplicate, upcase)

	got := strsOf(p.Run(tokens("word")))
	if len(got) != 2 || got[0] != "WORD" || got[1] != "WORD" {
		t.Errorf("expected [WORD WORD], got %v", got)
	}
}

// TestRunDropsTokens verifies a stage returning nil removes the token
// from all downstream stages.
func TestRunDropsTokens(t *testing.T) {
	p := New()
	p.Add(dropShort)

	got := strsOf(p.Run(tokens("ab", "abc", "x")))
	if len(got) != 1 || got[0] != "abc" {
		t.Errorf("expected [abc], got %v", got)
	}
}

func TestRunString(t *testing.T) {
	p := New()
	p.Add(upcase)

	got := p.RunString("hello", tokenizer.Metadata{})
	if len(got) != 1 || got[0] != "HELLO" {
		t.Errorf("expected [HELLO], got %v", got)
	}
}

// TestSaveLoadRoundTrip verifies a pipeline built from registered
// functions serialises to labels and reconstructs identically.
func TestSaveLoadRoundTrip(t *testing.T) {
	p := New()
	p.Add(dropShort, upcase)

	labels, err := p.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(labels) != 2 || labels[0] != "dropShort" || labels[1] != "upcase" {
		t.Fatalf("unexpected labels: %v", labels)
	}

	loaded, err := Load(labels)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := strsOf(loaded.Run(tokens("go", "gopher")))
	if len(got) != 1 || got[0] != "GOPHER" {
		t.Errorf("loaded pipeline expected [GOPHER], got %v", got)
	}
}

func TestLoadUnregisteredLabel(t *testing.T) {
	if _, err := Load([]string{"no-such-function"}); err == nil {
		t.Error("expected error loading unregistered label")
	}
}

func TestSaveUnregisteredFunction(t *testing.T) {
	p := New()
	p.Add(func(token *tokenizer.Token, _ int, _ []*tokenizer.Token) []*tokenizer.Token {
		return []*tokenizer.Token{token}
	})
	if _, err := p.Save(); err == nil {
		t.Error("expected error saving unregistered function")
	}
}

// TestInsertionAndRemoval verifies After, Before and Remove adjust the
// stack positions.
func TestInsertionAndRemoval(t *testing.T) {
	p := New()
	p.Add(upcase)

	if err := p.Before(upcase, dropShort); err != nil {
		t.Fatalf("Before: %v", err)
	}
	if err := p.After(upcase, duplicate); err != nil {
		t.Fatalf("After: %v", err)
	}

	labels, err := p.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := []string{"dropShort", "upcase", "duplicate"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, labels)
		}
	}

	p.Remove(upcase)
	if p.Len() != 2 {
		t.Errorf("expected 2 functions after removal, got %d", p.Len())
	}

	if err := p.Before(upcase, dropShort); err == nil {
		t.Error("expected error inserting relative to a removed function")
	}

	p.Reset()
	if p.Len() != 0 {
		t.Errorf("expected empty pipeline after reset, got %d", p.Len())
	}
}
