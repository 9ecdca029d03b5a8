// Package query models parsed search queries as a list of clauses and
// provides the lexer and recursive-descent parser for the compact query
// syntax (field scoping, wildcards, edit distance, boosts, presence).
package query

import "strings"

// Wildcard positions are bit flags; LEADING and TRAILING may be
// combined.
type Wildcard int

const (
	WildcardNone     Wildcard = 0
	WildcardLeading  Wildcard = 1 << 0
	WildcardTrailing Wildcard = 1 << 1
)

// Presence states how a clause's term must relate to matching
// documents.
type Presence int

const (
	// PresenceOptional terms contribute to scoring but are not
	// required to be present.
	PresenceOptional Presence = iota + 1

	// PresenceRequired terms must be present in matching documents.
	PresenceRequired

	// PresenceProhibited terms must not be present in matching
	// documents.
	PresenceProhibited
)

// Clause is a single term with its match options.
type Clause struct {
	Term         string
	Fields       []string
	Boost        float64
	EditDistance int
	UsePipeline  bool
	Wildcard     Wildcard
	Presence     Presence
}

// NewClause returns a Clause with the default options applied: all
// fields, boost 1, pipeline processing on, no wildcard, optional
// presence.
func NewClause(term string) Clause {
	return Clause{
		Term:        term,
		Boost:       1,
		UsePipeline: true,
		Wildcard:    WildcardNone,
		Presence:    PresenceOptional,
	}
}

// Query is a list of clauses run against an index.
type Query struct {
	Clauses   []Clause
	AllFields []string
}

// New returns an empty query over the given searchable fields.
func New(allFields []string) *Query {
	return &Query{AllFields: allFields}
}

// Clause adds a clause to the query, resolving empty fields to all
// fields and applying the clause's wildcard flags to its term.
func (q *Query) Clause(clause Clause) *Query {
	if len(clause.Fields) == 0 {
		clause.Fields = q.AllFields
	}
	if clause.Boost == 0 {
		clause.Boost = 1
	}
	if clause.Presence == 0 {
		clause.Presence = PresenceOptional
	}

	if clause.Wildcard&WildcardLeading != 0 && !strings.HasPrefix(clause.Term, "*") {
		clause.Term = "*" + clause.Term
	}
	if clause.Wildcard&WildcardTrailing != 0 && !strings.HasSuffix(clause.Term, "*") {
		clause.Term = clause.Term + "*"
	}

	q.Clauses = append(q.Clauses, clause)
	return q
}

// Term adds a clause for the given term, applying any option functions
// over the clause defaults.
func (q *Query) Term(term string, opts ...func(*Clause)) *Query {
	clause := NewClause(term)
	for _, opt := range opts {
		opt(&clause)
	}
	return q.Clause(clause)
}

// Terms adds one clause per term with the same options.
func (q *Query) Terms(terms []string, opts ...func(*Clause)) *Query {
	for _, term := range terms {
		q.Term(term, opts...)
	}
	return q
}

// IsNegated reports whether every clause in the query is prohibited.
// Negated queries match all documents not excluded by any clause.
func (q *Query) IsNegated() bool {
	for _, clause := range q.Clauses {
		if clause.Presence != PresenceProhibited {
			return false
		}
	}
	return true
}
