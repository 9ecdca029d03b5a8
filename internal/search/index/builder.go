package index

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenset"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/vector"
)

// Document is an indexable record. The reference field and every
// registered field without an extractor are read from it by key.
type Document map[string]any

// Field configures one indexed field: its relative weight in scoring
// and an optional extractor overriding direct key access.
type Field struct {
	Name      string
	Boost     float64
	Extractor func(Document) any
}

// WithBoost sets the field's scoring weight.
func WithBoost(boost float64) func(*Field) {
	return func(f *Field) { f.Boost = boost }
}

// WithExtractor sets a function deriving the field's value from the
// document instead of reading it by key.
func WithExtractor(fn func(Document) any) func(*Field) {
	return func(f *Field) { f.Extractor = fn }
}

type addOptions struct {
	boost float64
}

// WithDocumentBoost sets the document's scoring weight for Add.
func WithDocumentBoost(boost float64) func(*addOptions) {
	return func(o *addOptions) { o.boost = boost }
}

// Builder accumulates documents and emits an immutable Index. Documents
// are tokenised and run through the index pipeline as they are added;
// Build computes the BM25 field vectors and the corpus token set.
type Builder struct {
	// Pipeline processes field text at index time. SearchPipeline is
	// handed to the built index and applied to query terms.
	Pipeline       *pipeline.Pipeline
	SearchPipeline *pipeline.Pipeline

	// MetadataWhitelist names the token metadata keys recorded into
	// postings (and so available in result match data).
	MetadataWhitelist []string

	refField             string
	fields               map[string]*Field
	fieldNames           []string
	invertedIndex        InvertedIndex
	fieldTermFrequencies map[FieldRef]map[string]int
	fieldLengths         map[FieldRef]int
	averageFieldLength   map[string]float64
	fieldVectors         map[string]*vector.Vector
	tokenSet             *tokenset.TokenSet
	documentBoosts       map[string]float64
	documentCount        int
	termIndex            int
	b                    float64
	k1                   float64
}

// NewBuilder returns a Builder with the defaults applied: reference
// field "id", b 0.75, k1 1.2, empty pipelines.
func NewBuilder() *Builder {
	return &Builder{
		Pipeline:             pipeline.New(),
		SearchPipeline:       pipeline.New(),
		refField:             "id",
		fields:               make(map[string]*Field),
		invertedIndex:        make(InvertedIndex),
		fieldTermFrequencies: make(map[FieldRef]map[string]int),
		fieldLengths:         make(map[FieldRef]int),
		documentBoosts:       make(map[string]float64),
		b:                    0.75,
		k1:                   1.2,
	}
}

// Ref names the document field holding the unique reference.
func (b *Builder) Ref(name string) {
	b.refField = name
}

// Field registers a field for indexing. Field names may not contain
// '/' since it joins field names and doc refs in serialised refs.
func (b *Builder) Field(name string, opts ...func(*Field)) error {
	if strings.Contains(name, fieldRefJoiner) {
		return fmt.Errorf("field %q contains illegal character '%s'", name, fieldRefJoiner)
	}

	field := &Field{Name: name, Boost: 1}
	for _, opt := range opts {
		opt(field)
	}

	if _, ok := b.fields[name]; !ok {
		b.fieldNames = append(b.fieldNames, name)
	}
	b.fields[name] = field
	return nil
}

// B sets the BM25 field-length normalisation parameter, clamped to
// [0, 1].
func (b *Builder) B(value float64) {
	switch {
	case value < 0:
		b.b = 0
	case value > 1:
		b.b = 1
	default:
		b.b = value
	}
}

// K1 sets the BM25 term-frequency saturation parameter.
func (b *Builder) K1(value float64) {
	b.k1 = value
}

// Use applies a plugin function to the builder, the extension point for
// bundled configuration such as a language pack.
func (b *Builder) Use(plugin func(*Builder)) {
	plugin(b)
}

// Add indexes a document. Every registered field is extracted,
// tokenised and run through the index pipeline; the resulting terms
// update the term frequencies, field lengths and inverted index.
func (b *Builder) Add(doc Document, opts ...func(*addOptions)) error {
	options := addOptions{boost: 1}
	for _, opt := range opts {
		opt(&options)
	}

	refValue, ok := doc[b.refField]
	if !ok {
		return fmt.Errorf("document is missing the reference field %q", b.refField)
	}
	docRef := fmt.Sprintf("%v", refValue)

	b.documentBoosts[docRef] = options.boost
	b.documentCount++

	for _, fieldName := range b.fieldNames {
		field := b.fields[fieldName]

		var fieldValue any
		if field.Extractor != nil {
			fieldValue = field.Extractor(doc)
		} else {
			fieldValue = doc[fieldName]
		}

		tokens := tokenizer.Tokenize(fieldValue, tokenizer.Metadata{"fields": []string{fieldName}})
		terms := b.Pipeline.Run(tokens)

		fieldRef := FieldRef{DocRef: docRef, FieldName: fieldName}
		fieldTerms := make(map[string]int)
		b.fieldTermFrequencies[fieldRef] = fieldTerms
		b.fieldLengths[fieldRef] = len(terms)

		for _, term := range terms {
			termStr := term.String()
			fieldTerms[termStr]++

			posting, ok := b.invertedIndex[termStr]
			if !ok {
				posting = &Posting{
					TermIndex: b.termIndex,
					Fields:    make(map[string]map[string]map[string][]any, len(b.fieldNames)),
				}
				b.termIndex++
				for _, name := range b.fieldNames {
					posting.Fields[name] = make(map[string]map[string][]any)
				}
				b.invertedIndex[termStr] = posting
			}

			docs := posting.Fields[fieldName]
			if docs == nil {
				docs = make(map[string]map[string][]any)
				posting.Fields[fieldName] = docs
			}
			metadata := docs[docRef]
			if metadata == nil {
				metadata = make(map[string][]any, len(b.MetadataWhitelist))
				docs[docRef] = metadata
			}
			for _, key := range b.MetadataWhitelist {
				metadata[key] = append(metadata[key], term.Metadata[key])
			}
		}
	}
	return nil
}

// Build finalises the accumulated documents into an immutable Index.
func (b *Builder) Build() (*Index, error) {
	b.calculateAverageFieldLengths()
	if err := b.createFieldVectors(); err != nil {
		return nil, err
	}
	if err := b.createTokenSet(); err != nil {
		return nil, err
	}

	return &Index{
		invertedIndex: b.invertedIndex,
		fieldVectors:  b.fieldVectors,
		tokenSet:      b.tokenSet,
		fields:        append([]string(nil), b.fieldNames...),
		pipeline:      b.SearchPipeline,
	}, nil
}

func (b *Builder) calculateAverageFieldLengths() {
	accumulator := make(map[string]int, len(b.fieldNames))
	documentsWithField := make(map[string]int, len(b.fieldNames))

	for fieldRef, length := range b.fieldLengths {
		documentsWithField[fieldRef.FieldName]++
		accumulator[fieldRef.FieldName] += length
	}

	b.averageFieldLength = make(map[string]float64, len(b.fieldNames))
	for fieldName, total := range accumulator {
		b.averageFieldLength[fieldName] = float64(total) / float64(documentsWithField[fieldName])
	}
}

func (b *Builder) createFieldVectors() error {
	b.fieldVectors = make(map[string]*vector.Vector, len(b.fieldTermFrequencies))
	idfCache := make(map[string]float64, len(b.invertedIndex))

	for fieldRef, termFrequencies := range b.fieldTermFrequencies {
		fieldLength := float64(b.fieldLengths[fieldRef])
		fieldVector := vector.New()
		fieldBoost := b.fields[fieldRef.FieldName].Boost
		docBoost := b.documentBoosts[fieldRef.DocRef]

		for term, frequency := range termFrequencies {
			posting := b.invertedIndex[term]
			tf := float64(frequency)

			idf, ok := idfCache[term]
			if !ok {
				idf = inverseDocumentFrequency(posting, b.documentCount)
				idfCache[term] = idf
			}

			score := idf * ((b.k1 + 1) * tf) /
				(b.k1*(1-b.b+b.b*(fieldLength/b.averageFieldLength[fieldRef.FieldName])) + tf)
			score *= fieldBoost
			score *= docBoost
			scoreWithPrecision := math.Round(score*1000) / 1000

			if err := fieldVector.Insert(posting.TermIndex, scoreWithPrecision); err != nil {
				return err
			}
		}

		b.fieldVectors[fieldRef.String()] = fieldVector
	}
	return nil
}

func (b *Builder) createTokenSet() error {
	terms := make([]string, 0, len(b.invertedIndex))
	for term := range b.invertedIndex {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	ts, err := tokenset.FromArray(terms)
	if err != nil {
		return err
	}
	b.tokenSet = ts
	return nil
}

// inverseDocumentFrequency computes the BM25 idf component for a
// posting, counting df over every (field, document) pair it records.
func inverseDocumentFrequency(posting *Posting, documentCount int) float64 {
	documentsWithTerm := posting.DocumentsWithTerm()
	x := (float64(documentCount) - float64(documentsWithTerm) + 0.5) / (float64(documentsWithTerm) + 0.5)
	return math.Log(1 + math.Abs(x))
}
