package query

import (
	"strings"
	"unicode/utf8"

	"github.com/huddlechat/message-search/internal/search/tokenizer"
	apperrors "github.com/huddlechat/message-search/pkg/errors"
)

// Limits bound the accepted query length in characters (inclusive).
type Limits struct {
	MinLength int
	MaxLength int
}

// DefaultLimits matches the documented 2-100 character contract.
var DefaultLimits = Limits{MinLength: 2, MaxLength: 100}

// Characters with meaning in common index query syntaxes. They are stripped
// rather than rejected so ordinary queries that happen to contain them still
// succeed.
const controlChars = "*?~^:\\/[](){}<>|&!+=#%$@"

// Parse validates raw against the limits, sanitizes index-engine control
// syntax, and builds the query AST. Malformed input is sanitized, never a
// parse failure; the only errors are the documented validation errors.
func Parse(raw string, limits Limits) (*Query, error) {
	if limits.MinLength <= 0 {
		limits.MinLength = DefaultLimits.MinLength
	}
	if limits.MaxLength <= 0 {
		limits.MaxLength = DefaultLimits.MaxLength
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, apperrors.ErrEmptyQuery
	}
	length := utf8.RuneCountInString(trimmed)
	if length < limits.MinLength {
		return nil, apperrors.ErrQueryTooShort
	}
	if length > limits.MaxLength {
		return nil, apperrors.ErrQueryTooLong
	}

	// Unbalanced quotes lose phrase semantics entirely.
	if strings.Count(trimmed, `"`)%2 != 0 {
		trimmed = strings.ReplaceAll(trimmed, `"`, " ")
	}

	q := &Query{
		Raw:  raw,
		Mode: ModeAnd,
	}

	negateNext := false
	for _, tok := range splitTokens(trimmed) {
		if !tok.quoted {
			switch strings.ToUpper(tok.text) {
			case "AND":
				q.Mode = ModeAnd
				continue
			case "OR":
				q.Mode = ModeOr
				continue
			case "NOT":
				negateNext = true
				continue
			}
		}
		terms := tokenizer.Terms(sanitize(tok.text))
		if len(terms) == 0 {
			continue
		}
		if tok.quoted {
			q.Clauses = append(q.Clauses, Clause{Terms: terms, Negated: negateNext})
		} else {
			// An unquoted token that sanitizes into several terms (e.g. a
			// stripped field selector) contributes one clause per term.
			for _, term := range terms {
				q.Clauses = append(q.Clauses, Clause{Terms: []string{term}, Negated: negateNext})
			}
		}
		negateNext = false
	}

	if len(q.Clauses) == 0 {
		return nil, apperrors.ErrInvalidQuery
	}
	if len(q.Positive()) == 0 {
		// Nothing to match against; exclusion alone is not a query.
		return nil, apperrors.ErrInvalidQuery
	}
	return q, nil
}

type rawToken struct {
	text   string
	quoted bool
}

// splitTokens splits the input on whitespace, keeping balanced double-quoted
// spans together as single quoted tokens.
func splitTokens(s string) []rawToken {
	tokens := make([]rawToken, 0, 8)
	var b strings.Builder
	inQuote := false

	flush := func(quoted bool) {
		if b.Len() > 0 || quoted {
			tokens = append(tokens, rawToken{text: b.String(), quoted: quoted})
			b.Reset()
		}
	}

	for _, r := range s {
		switch {
		case r == '"':
			if inQuote {
				flush(true)
				inQuote = false
			} else {
				flush(false)
				inQuote = true
			}
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inQuote {
				b.WriteRune(r)
			} else {
				flush(false)
			}
		default:
			b.WriteRune(r)
		}
	}
	flush(inQuote)
	return tokens
}

// sanitize replaces index control characters with spaces.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(controlChars, r) {
			return ' '
		}
		return r
	}, s)
}
