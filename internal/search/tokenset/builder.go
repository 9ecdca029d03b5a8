package tokenset

import "fmt"

// Builder constructs a minimised TokenSet from words inserted in
// lexicographic order. Minimisation happens incrementally: whenever an
// inserted word diverges from the previous one, the no-longer-shared
// suffix is frozen bottom-up and structurally equivalent subtrees are
// replaced by a single shared node.
type Builder struct {
	previousWord   []rune
	root           *TokenSet
	uncheckedNodes []uncheckedNode
	minimizedNodes map[string]*TokenSet
}

// uncheckedNode is a frontier entry: an edge whose subtree may still
// grow and therefore cannot be minimised yet.
type uncheckedNode struct {
	parent *TokenSet
	char   rune
	child  *TokenSet
}

// NewBuilder returns a Builder with an empty root.
func NewBuilder() *Builder {
	return &Builder{
		root:           New(),
		minimizedNodes: make(map[string]*TokenSet),
	}
}

// FromArray builds a minimised TokenSet from a lexicographically sorted
// vocabulary. It fails if the input is out of order.
func FromArray(words []string) (*TokenSet, error) {
	builder := NewBuilder()
	for _, word := range words {
		if err := builder.Insert(word); err != nil {
			return nil, err
		}
	}
	builder.Finish()
	return builder.Root(), nil
}

// Insert adds the next word. Words must arrive in sorted order so that
// the shared-prefix frontier discipline keeps minimisation bottom-up.
func (b *Builder) Insert(word string) error {
	runes := []rune(word)
	commonPrefix := 0
	if string(runes) < string(b.previousWord) {
		return fmt.Errorf("out of order word insertion: %q after %q", word, string(b.previousWord))
	}

	for i := 0; i < len(runes) && i < len(b.previousWord); i++ {
		if runes[i] != b.previousWord[i] {
			break
		}
		commonPrefix++
	}

	b.minimize(commonPrefix)

	var node *TokenSet
	if len(b.uncheckedNodes) == 0 {
		node = b.root
	} else {
		node = b.uncheckedNodes[len(b.uncheckedNodes)-1].child
	}

	for i := commonPrefix; i < len(runes); i++ {
		next := New()
		char := runes[i]
		node.edges[char] = next
		b.uncheckedNodes = append(b.uncheckedNodes, uncheckedNode{
			parent: node,
			char:   char,
			child:  next,
		})
		node = next
	}

	node.final = true
	b.previousWord = runes
	return nil
}

// Finish minimises the remaining frontier down to the root.
func (b *Builder) Finish() {
	b.minimize(0)
}

// Root returns the automaton root. Only meaningful after Finish.
func (b *Builder) Root() *TokenSet {
	return b.root
}

// minimize pops frontier entries deeper than downTo. Each popped child
// is either replaced by an already-minimised node with the same
// canonical key, or recorded as the minimised representative of its key.
func (b *Builder) minimize(downTo int) {
	for i := len(b.uncheckedNodes) - 1; i >= downTo; i-- {
		node := b.uncheckedNodes[i]
		childKey := node.child.String()

		if existing, ok := b.minimizedNodes[childKey]; ok {
			node.parent.edges[node.char] = existing
		} else {
			b.minimizedNodes[childKey] = node.child
		}

		b.uncheckedNodes = b.uncheckedNodes[:i]
	}
}
