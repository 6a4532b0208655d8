// Package query validates, sanitizes, and parses raw search input into a
// small AST the engine can evaluate: an ordered list of term or phrase
// clauses, each optionally negated, combined under AND or OR.
package query

// Mode says how positive clauses combine.
type Mode int

const (
	ModeAnd Mode = iota
	ModeOr
)

func (m Mode) String() string {
	if m == ModeOr {
		return "OR"
	}
	return "AND"
}

// Clause is a single query unit. One term is an exact-term match; multiple
// terms form a phrase that must appear as adjacent terms in order.
type Clause struct {
	Terms   []string
	Negated bool
}

// IsPhrase reports whether the clause requires adjacent-term matching.
func (c Clause) IsPhrase() bool {
	return len(c.Terms) > 1
}

// Query is the parsed, sanitized form of a raw query string.
type Query struct {
	Raw     string
	Mode    Mode
	Clauses []Clause
}

// Positive returns the non-negated clauses.
func (q *Query) Positive() []Clause {
	out := make([]Clause, 0, len(q.Clauses))
	for _, c := range q.Clauses {
		if !c.Negated {
			out = append(out, c)
		}
	}
	return out
}

// Negated returns the negated clauses.
func (q *Query) Negated() []Clause {
	out := make([]Clause, 0)
	for _, c := range q.Clauses {
		if c.Negated {
			out = append(out, c)
		}
	}
	return out
}
