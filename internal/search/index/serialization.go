package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenset"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/vector"
)

// Version identifies the serialised index schema. Loading a different
// version warns but proceeds.
const Version = "1.0.0"

// SerializedFieldVector is the on-wire form of one field vector: a
// [fieldRef, elements] pair where elements is the flat (index, value)
// sequence.
type SerializedFieldVector struct {
	FieldRef string
	Elements []float64
}

func (v SerializedFieldVector) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{v.FieldRef, v.Elements})
}

func (v *SerializedFieldVector) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("field vector entry must be a [ref, elements] pair, got %d values", len(pair))
	}
	if err := json.Unmarshal(pair[0], &v.FieldRef); err != nil {
		return err
	}
	// Elements may be JSON numbers or numeric strings; both load as float64.
	var elements []json.Number
	if err := json.Unmarshal(pair[1], &elements); err != nil {
		return err
	}
	v.Elements = make([]float64, len(elements))
	for i, n := range elements {
		f, err := n.Float64()
		if err != nil {
			return err
		}
		v.Elements[i] = f
	}
	return nil
}

// SerializedPosting is the on-wire form of one inverted index entry: a
// [term, posting] pair where the posting object carries the term's
// vector coordinate under "_index" alongside its per-field documents.
type SerializedPosting struct {
	Term      string
	TermIndex int
	Fields    map[string]map[string]map[string][]any
}

func (p SerializedPosting) MarshalJSON() ([]byte, error) {
	posting := make(map[string]any, len(p.Fields)+1)
	posting["_index"] = p.TermIndex
	for field, docs := range p.Fields {
		posting[field] = docs
	}
	return json.Marshal([]any{p.Term, posting})
}

func (p *SerializedPosting) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("inverted index entry must be a [term, posting] pair, got %d values", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.Term); err != nil {
		return err
	}

	var posting map[string]json.RawMessage
	if err := json.Unmarshal(pair[1], &posting); err != nil {
		return err
	}

	p.Fields = make(map[string]map[string]map[string][]any, len(posting))
	for key, raw := range posting {
		if key == "_index" {
			if err := json.Unmarshal(raw, &p.TermIndex); err != nil {
				return err
			}
			continue
		}
		var docs map[string]map[string][]any
		if err := json.Unmarshal(raw, &docs); err != nil {
			return err
		}
		p.Fields[key] = docs
	}
	return nil
}

// SerializedIndex is the stable JSON schema of a built index.
type SerializedIndex struct {
	Version       string                  `json:"version"`
	Fields        []string                `json:"fields"`
	FieldVectors  []SerializedFieldVector `json:"fieldVectors"`
	InvertedIndex []SerializedPosting     `json:"invertedIndex"`
	Pipeline      []string                `json:"pipeline"`
}

// ToJSON returns the serialisable form of the index. Inverted index
// entries are emitted in lexicographic term order: loading feeds them
// straight into the token-set builder, which requires sorted input.
func (idx *Index) ToJSON() (*SerializedIndex, error) {
	labels, err := idx.pipeline.Save()
	if err != nil {
		return nil, err
	}

	fieldRefs := make([]string, 0, len(idx.fieldVectors))
	for fieldRef := range idx.fieldVectors {
		fieldRefs = append(fieldRefs, fieldRef)
	}
	sort.Strings(fieldRefs)

	fieldVectors := make([]SerializedFieldVector, 0, len(fieldRefs))
	for _, fieldRef := range fieldRefs {
		fieldVectors = append(fieldVectors, SerializedFieldVector{
			FieldRef: fieldRef,
			Elements: idx.fieldVectors[fieldRef].ToSlice(),
		})
	}

	terms := make([]string, 0, len(idx.invertedIndex))
	for term := range idx.invertedIndex {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	invertedIndex := make([]SerializedPosting, 0, len(terms))
	for _, term := range terms {
		posting := idx.invertedIndex[term]
		invertedIndex = append(invertedIndex, SerializedPosting{
			Term:      term,
			TermIndex: posting.TermIndex,
			Fields:    posting.Fields,
		})
	}

	return &SerializedIndex{
		Version:       Version,
		Fields:        append([]string(nil), idx.fields...),
		FieldVectors:  fieldVectors,
		InvertedIndex: invertedIndex,
		Pipeline:      labels,
	}, nil
}

// Load reconstructs an index from its serialised form. The inverted
// index must arrive in lexicographic term order; the token-set builder
// rejects it otherwise. Every pipeline label must be registered.
func Load(serialized *SerializedIndex) (*Index, error) {
	if serialized.Version != Version {
		slog.Warn("version mismatch when loading serialised index",
			"expected", Version,
			"actual", serialized.Version,
		)
	}

	fieldVectors := make(map[string]*vector.Vector, len(serialized.FieldVectors))
	for _, fv := range serialized.FieldVectors {
		fieldVectors[fv.FieldRef] = vector.New(fv.Elements...)
	}

	invertedIndex := make(InvertedIndex, len(serialized.InvertedIndex))
	terms := make([]string, 0, len(serialized.InvertedIndex))
	for _, sp := range serialized.InvertedIndex {
		terms = append(terms, sp.Term)
		fields := sp.Fields
		if fields == nil {
			fields = make(map[string]map[string]map[string][]any)
		}
		invertedIndex[sp.Term] = &Posting{TermIndex: sp.TermIndex, Fields: fields}
	}

	tokenSet, err := tokenset.FromArray(terms)
	if err != nil {
		return nil, err
	}

	searchPipeline, err := pipeline.Load(serialized.Pipeline)
	if err != nil {
		return nil, err
	}

	return &Index{
		invertedIndex: invertedIndex,
		fieldVectors:  fieldVectors,
		tokenSet:      tokenSet,
		fields:        append([]string(nil), serialized.Fields...),
		pipeline:      searchPipeline,
	}, nil
}
