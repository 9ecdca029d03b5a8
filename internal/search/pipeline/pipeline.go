// Package pipeline runs an ordered list of token-transforming functions
// over batches of tokens. Each function may keep, rewrite, expand (1:N)
// or drop a token; the collected outputs of one stage feed the next.
//
// Functions are registered under a label so a pipeline can be serialised
// as its label list and reconstructed on load.
package pipeline

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenizer"
)

// Func transforms one token. It receives the token, its position in the
// current batch, and the whole batch. It returns the tokens to carry
// forward: the same token, a replacement, several tokens, or nil to
// drop the token entirely.
type Func func(token *tokenizer.Token, i int, tokens []*tokenizer.Token) []*tokenizer.Token

var (
	registered = make(map[string]Func)
	labels     = make(map[uintptr]string)
)

// Register records a function under a label for pipeline serialisation.
// Registering an already-used label overwrites it with a warning.
func Register(fn Func, label string) {
	if _, ok := registered[label]; ok {
		slog.Warn("overwriting existing registered pipeline function", "label", label)
	}
	registered[label] = fn
	labels[reflect.ValueOf(fn).Pointer()] = label
}

// Registered returns the function registered under the label.
func Registered(label string) (Func, bool) {
	fn, ok := registered[label]
	return fn, ok
}

// Pipeline is an ordered stack of Funcs.
type Pipeline struct {
	stack []Func
}

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Load reconstructs a pipeline from serialised labels. Every label must
// be registered.
func Load(serialised []string) (*Pipeline, error) {
	p := New()
	for _, label := range serialised {
		fn, ok := registered[label]
		if !ok {
			return nil, fmt.Errorf("cannot load unregistered function: %s", label)
		}
		p.Add(fn)
	}
	return p, nil
}

// Add appends functions to the end of the pipeline. Unregistered
// functions are accepted with a warning since such a pipeline cannot be
// serialised.
func (p *Pipeline) Add(fns ...Func) {
	for _, fn := range fns {
		if _, ok := labels[reflect.ValueOf(fn).Pointer()]; !ok {
			slog.Warn("adding unregistered function to pipeline, serialisation will fail")
		}
		p.stack = append(p.stack, fn)
	}
}

// After inserts newFn immediately after an existing function.
func (p *Pipeline) After(existing, newFn Func) error {
	pos := p.position(existing)
	if pos < 0 {
		return fmt.Errorf("cannot find existing function in pipeline")
	}
	p.insert(pos+1, newFn)
	return nil
}

// Before inserts newFn immediately before an existing function.
func (p *Pipeline) Before(existing, newFn Func) error {
	pos := p.position(existing)
	if pos < 0 {
		return fmt.Errorf("cannot find existing function in pipeline")
	}
	p.insert(pos, newFn)
	return nil
}

// Remove deletes a function from the pipeline if present.
func (p *Pipeline) Remove(fn Func) {
	pos := p.position(fn)
	if pos < 0 {
		return
	}
	p.stack = append(p.stack[:pos], p.stack[pos+1:]...)
}

// Run applies every function in order to every current token. Tokens
// dropped by a stage never reach later stages.
func (p *Pipeline) Run(tokens []*tokenizer.Token) []*tokenizer.Token {
	for _, fn := range p.stack {
		if len(tokens) == 0 {
			return tokens
		}
		memo := make([]*tokenizer.Token, 0, len(tokens))
		for i, token := range tokens {
			memo = append(memo, fn(token, i, tokens)...)
		}
		tokens = memo
	}
	return tokens
}

// RunString runs a single string through the pipeline, seeding the
// token with the given metadata, and returns the resulting strings.
func (p *Pipeline) RunString(str string, metadata tokenizer.Metadata) []string {
	token := tokenizer.NewToken(str, metadata)
	results := p.Run([]*tokenizer.Token{token})
	strs := make([]string, 0, len(results))
	for _, t := range results {
		strs = append(strs, t.String())
	}
	return strs
}

// Reset empties the pipeline.
func (p *Pipeline) Reset() {
	p.stack = nil
}

// Len returns the number of functions in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.stack)
}

// Save returns the ordered label list of the pipeline's functions,
// failing on any unregistered function.
func (p *Pipeline) Save() ([]string, error) {
	out := make([]string, 0, len(p.stack))
	for _, fn := range p.stack {
		label, ok := labels[reflect.ValueOf(fn).Pointer()]
		if !ok {
			return nil, fmt.Errorf("pipeline contains an unregistered function")
		}
		out = append(out, label)
	}
	return out, nil
}

func (p *Pipeline) position(fn Func) int {
	target := reflect.ValueOf(fn).Pointer()
	for i, existing := range p.stack {
		if reflect.ValueOf(existing).Pointer() == target {
			return i
		}
	}
	return -1
}

func (p *Pipeline) insert(pos int, fn Func) {
	p.stack = append(p.stack, nil)
	copy(p.stack[pos+1:], p.stack[pos:])
	p.stack[pos] = fn
}
