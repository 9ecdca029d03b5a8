// Package tokenset implements a minimised finite-state automaton over
// single-character edge labels. The same structure represents the corpus
// vocabulary and individual query patterns (literal, wildcard, fuzzy);
// intersecting the two yields the set of corpus terms a clause matches.
package tokenset

import (
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/query"
)

// Wildcard is the edge label that consumes any character via a self-loop.
const Wildcard = '*'

// nextID numbers nodes at creation. Ids only feed the canonical string
// key used during minimisation; they are never observed externally.
var nextID atomic.Uint64

// TokenSet is one node of the automaton. A node is final when some
// accepted string ends at it. Edges map a character to the child node;
// a Wildcard edge may point back at its own node.
type TokenSet struct {
	final bool
	edges map[rune]*TokenSet
	id    uint64
	str   string
}

// New returns an empty, non-final node.
func New() *TokenSet {
	return &TokenSet{
		edges: make(map[rune]*TokenSet),
		id:    nextID.Add(1),
	}
}

// Final reports whether an accepted string ends at this node.
func (t *TokenSet) Final() bool {
	return t.final
}

// FromString converts a literal pattern, which may contain the wildcard
// character, into an automaton. A wildcard becomes a self-loop on the
// current node so it matches any run of characters, including none.
func FromString(str string) *TokenSet {
	root := New()
	node := root
	runes := []rune(str)
	for i, char := range runes {
		final := i == len(runes)-1
		if char == Wildcard {
			node.edges[char] = node
			node.final = final
		} else {
			next := New()
			next.final = final
			node.edges[char] = next
			node = next
		}
	}
	return root
}

// FromClause builds the automaton for a parsed query clause, choosing
// fuzzy construction when the clause carries an edit distance and
// literal (possibly wildcarded) construction otherwise.
func FromClause(clause *query.Clause) *TokenSet {
	if clause.EditDistance > 0 {
		return FromFuzzyString(clause.Term, clause.EditDistance)
	}
	return FromString(clause.Term)
}

// fuzzyFrame is one pending expansion state: the node reached so far,
// the edit budget left, and the pattern suffix still to consume.
type fuzzyFrame struct {
	node           *TokenSet
	editsRemaining int
	suffix         []rune
}

// FromFuzzyString converts a pattern into an automaton accepting every
// string within editDistance edits of it. Insertions, deletions,
// substitutions and adjacent transpositions each cost one edit.
func FromFuzzyString(str string, editDistance int) *TokenSet {
	root := New()
	stack := []fuzzyFrame{{
		node:           root,
		editsRemaining: editDistance,
		suffix:         []rune(str),
	}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// no edit
		if len(frame.suffix) > 0 {
			char := frame.suffix[0]
			noEditNode, ok := frame.node.edges[char]
			if !ok {
				noEditNode = New()
				frame.node.edges[char] = noEditNode
			}
			if len(frame.suffix) == 1 {
				noEditNode.final = true
			}
			stack = append(stack, fuzzyFrame{
				node:           noEditNode,
				editsRemaining: frame.editsRemaining,
				suffix:         frame.suffix[1:],
			})
		}

		if frame.editsRemaining == 0 {
			continue
		}

		// insertion
		insertionNode, ok := frame.node.edges[Wildcard]
		if !ok {
			insertionNode = New()
			frame.node.edges[Wildcard] = insertionNode
		}
		if len(frame.suffix) == 0 {
			insertionNode.final = true
		}
		stack = append(stack, fuzzyFrame{
			node:           insertionNode,
			editsRemaining: frame.editsRemaining - 1,
			suffix:         frame.suffix,
		})

		// deletion
		if len(frame.suffix) > 1 {
			stack = append(stack, fuzzyFrame{
				node:           frame.node,
				editsRemaining: frame.editsRemaining - 1,
				suffix:         frame.suffix[1:],
			})
		}

		// deletion of the final character
		if len(frame.suffix) == 1 {
			frame.node.final = true
		}

		// substitution
		if len(frame.suffix) >= 1 {
			substitutionNode, ok := frame.node.edges[Wildcard]
			if !ok {
				substitutionNode = New()
				frame.node.edges[Wildcard] = substitutionNode
			}
			if len(frame.suffix) == 1 {
				substitutionNode.final = true
			}
			stack = append(stack, fuzzyFrame{
				node:           substitutionNode,
				editsRemaining: frame.editsRemaining - 1,
				suffix:         frame.suffix[1:],
			})
		}

		// transposition of the next two characters
		if len(frame.suffix) > 1 {
			charA, charB := frame.suffix[0], frame.suffix[1]
			transposeNode, ok := frame.node.edges[charB]
			if !ok {
				transposeNode = New()
				frame.node.edges[charB] = transposeNode
			}
			rest := make([]rune, 0, len(frame.suffix)-1)
			rest = append(rest, charA)
			rest = append(rest, frame.suffix[2:]...)
			stack = append(stack, fuzzyFrame{
				node:           transposeNode,
				editsRemaining: frame.editsRemaining - 1,
				suffix:         rest,
			})
		}
	}

	return root
}

// ToArray enumerates the strings accepted by this automaton via DFS.
// It must not be called on automata containing wildcard self-loops;
// callers enumerate only intersection results, which are loop-free.
func (t *TokenSet) ToArray() []string {
	words := make([]string, 0)

	type frame struct {
		prefix string
		node   *TokenSet
	}
	stack := []frame{{prefix: "", node: t}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node.final {
			words = append(words, f.prefix)
		}
		for _, label := range f.node.sortedLabels() {
			stack = append(stack, frame{
				prefix: f.prefix + string(label),
				node:   f.node.edges[label],
			})
		}
	}

	return words
}

// String returns the canonical key of this node: the finality bit
// followed by every (label, child-id) pair in sorted label order. Two
// minimised nodes are structurally equivalent iff their keys are equal,
// which only holds when children are minimised before parents. The key
// is cached after the first call.
func (t *TokenSet) String() string {
	if t.str != "" {
		return t.str
	}

	var b strings.Builder
	if t.final {
		b.WriteByte('1')
	} else {
		b.WriteByte('0')
	}
	for _, label := range t.sortedLabels() {
		b.WriteRune(label)
		b.WriteString(strconv.FormatUint(t.edges[label].id, 10))
	}

	t.str = b.String()
	return t.str
}

// Intersect returns a new automaton accepting only strings accepted by
// both t and other. The receiver may contain wildcard self-loops; the
// result is finite as long as other has none, which holds for automata
// built from a sorted vocabulary. Output edges are labelled with the
// concrete characters from other, so enumerating the result yields
// corpus terms.
func (t *TokenSet) Intersect(other *TokenSet) *TokenSet {
	output := New()

	type frame struct {
		qNode  *TokenSet
		output *TokenSet
		node   *TokenSet
	}
	stack := []frame{{qNode: other, output: output, node: t}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for qEdge, qNext := range f.qNode.edges {
			for nEdge, nNext := range f.node.edges {
				if nEdge != qEdge && nEdge != Wildcard {
					continue
				}
				final := nNext.final && qNext.final
				if next, ok := f.output.edges[qEdge]; ok {
					// A node already exists along this path; any
					// entry via another (q, n) pair ORs finality.
					next.final = next.final || final
					stack = append(stack, frame{qNode: qNext, output: next, node: nNext})
				} else {
					next := New()
					next.final = final
					f.output.edges[qEdge] = next
					stack = append(stack, frame{qNode: qNext, output: next, node: nNext})
				}
			}
		}
	}

	return output
}

func (t *TokenSet) sortedLabels() []rune {
	labels := make([]rune, 0, len(t.edges))
	for label := range t.edges {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}
