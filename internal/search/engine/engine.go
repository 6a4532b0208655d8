// Package engine executes searches end to end: it parses and sanitizes the
// raw query, resolves the caller's accessible rooms, gathers candidates
// from the inverted index, ranks them, extracts snippets, and paginates.
// Each request runs under an enforced wall-clock budget.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/huddlechat/message-search/internal/message"
	"github.com/huddlechat/message-search/internal/search/authz"
	"github.com/huddlechat/message-search/internal/search/index"
	"github.com/huddlechat/message-search/internal/search/query"
	"github.com/huddlechat/message-search/internal/search/ranker"
	"github.com/huddlechat/message-search/internal/search/snippet"
	"github.com/huddlechat/message-search/pkg/config"
	apperrors "github.com/huddlechat/message-search/pkg/errors"
	"github.com/huddlechat/message-search/pkg/resilience"
	"github.com/huddlechat/message-search/pkg/tracing"
)

// Index is the read-side interface to the inverted index store.
type Index interface {
	Postings(term string) index.PostingList
	DocFreq(term string) int
	DocCount() int
	AvgDocLength() float64
}

// Request is a single search invocation for an already-authenticated caller.
type Request struct {
	UserID string
	Query  string
	RoomID string
	Limit  int
	Offset int
}

// Result is one ranked hit with its context snippet.
type Result struct {
	Message   *message.Message `json:"message"`
	RankScore float64          `json:"rank_score"`
	Snippet   string           `json:"snippet"`
}

// Response is the assembled, paginated search response.
type Response struct {
	Results    []Result `json:"results"`
	TotalCount int      `json:"total_count"`
	Query      string   `json:"query"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
	HasMore    bool     `json:"has_more"`
}

// Engine wires the index, the room access provider, and the message store.
type Engine struct {
	idx      Index
	access   authz.RoomAccessProvider
	messages message.Store
	cfg      config.SearchConfig
	logger   *slog.Logger
}

// New creates an Engine.
func New(idx Index, access authz.RoomAccessProvider, messages message.Store, cfg config.SearchConfig) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.SnippetRadius <= 0 {
		cfg.SnippetRadius = snippet.DefaultRadius
	}
	return &Engine{
		idx:      idx,
		access:   access,
		messages: messages,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-engine"),
	}
}

// Search validates and executes the request. Validation and authorization
// errors return immediately; exceeding the query budget aborts the whole
// query with ErrSearchTimeout rather than returning a partial page.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	limit := clampLimit(req.Limit, e.cfg.DefaultLimit, e.cfg.MaxLimit)
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	q, err := query.Parse(req.Query, query.Limits{
		MinLength: e.cfg.MinQueryLength,
		MaxLength: e.cfg.MaxQueryLength,
	})
	if err != nil {
		return nil, err
	}

	accessible, err := e.access.AccessibleRooms(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolving room access for %s: %w", req.UserID, err)
	}
	effective, err := authz.Resolve(accessible, req.RoomID)
	if err != nil {
		return nil, err
	}
	if len(effective) == 0 {
		return emptyResponse(req.Query, limit, offset), nil
	}

	var resp *Response
	err = resilience.WithTimeout(ctx, e.cfg.QueryTimeout, "search", func(ctx context.Context) error {
		var execErr error
		resp, execErr = e.execute(ctx, q, effective, limit, offset)
		return execErr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn("query exceeded budget",
				"query", req.Query,
				"budget", e.cfg.QueryTimeout,
			)
			return nil, apperrors.ErrSearchTimeout
		}
		return nil, err
	}
	return resp, nil
}

func (e *Engine) execute(ctx context.Context, q *query.Query, effective authz.RoomSet, limit, offset int) (*Response, error) {
	ctx, span := tracing.StartChildSpan(ctx, "engine.execute")
	defer span.End()

	candidates, postingsPerTerm, err := e.gatherCandidates(ctx, q, effective)
	if err != nil {
		return nil, err
	}
	span.SetAttr("candidates", len(candidates))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Restrict each term's postings to the surviving candidate set before
	// scoring, so excluded and unauthorized messages contribute nothing.
	docFreqs := make(map[string]int, len(postingsPerTerm))
	for term, postings := range postingsPerTerm {
		filtered := postings[:0]
		seen := make(map[string]struct{}, len(postings))
		for _, p := range postings {
			if _, ok := candidates[p.MessageID]; !ok {
				continue
			}
			if _, dup := seen[p.MessageID]; dup {
				continue
			}
			seen[p.MessageID] = struct{}{}
			filtered = append(filtered, p)
		}
		postingsPerTerm[term] = filtered
		docFreqs[term] = e.idx.DocFreq(term)
	}

	ranked := ranker.Rank(postingsPerTerm, ranker.Params{
		TotalDocs:    e.idx.DocCount(),
		AvgDocLength: e.idx.AvgDocLength(),
		DocFreqs:     docFreqs,
	})

	// Defense in depth: no message outside the effective room set leaves
	// the engine even if an index lookup was over-broad.
	filtered := ranked[:0]
	for _, sm := range ranked {
		if effective.Contains(sm.RoomID) {
			filtered = append(filtered, sm)
		}
	}
	ranked = filtered

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return e.assemble(ctx, q, ranked, limit, offset)
}

// gatherCandidates evaluates the query AST against the index, restricted to
// the effective room set. It returns the candidate message ids and the
// room-filtered postings for every positive term.
func (e *Engine) gatherCandidates(ctx context.Context, q *query.Query, effective authz.RoomSet) (map[string]struct{}, map[string]index.PostingList, error) {
	postingsPerTerm := make(map[string]index.PostingList)
	var candidates map[string]struct{}

	for _, clause := range q.Positive() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		clauseDocs := e.clauseDocs(clause, effective, postingsPerTerm)
		if candidates == nil {
			candidates = clauseDocs
			continue
		}
		switch q.Mode {
		case query.ModeOr:
			for id := range clauseDocs {
				candidates[id] = struct{}{}
			}
		default:
			for id := range candidates {
				if _, ok := clauseDocs[id]; !ok {
					delete(candidates, id)
				}
			}
		}
	}
	if candidates == nil {
		candidates = make(map[string]struct{})
	}

	for _, clause := range q.Negated() {
		excluded := e.clauseDocs(clause, effective, nil)
		for id := range excluded {
			delete(candidates, id)
		}
	}
	return candidates, postingsPerTerm, nil
}

// clauseDocs returns the message ids matching one clause within the
// effective rooms. When collect is non-nil the room-filtered postings for
// each clause term are accumulated into it for later scoring.
func (e *Engine) clauseDocs(clause query.Clause, effective authz.RoomSet, collect map[string]index.PostingList) map[string]struct{} {
	perTerm := make([]map[string]index.Posting, len(clause.Terms))
	for i, term := range clause.Terms {
		byID := make(map[string]index.Posting)
		for _, p := range e.idx.Postings(term) {
			if effective.Contains(p.RoomID) {
				byID[p.MessageID] = p
			}
		}
		perTerm[i] = byID
	}

	docs := make(map[string]struct{})
	if !clause.IsPhrase() {
		for id := range perTerm[0] {
			docs[id] = struct{}{}
		}
	} else {
		for id, first := range perTerm[0] {
			rest := make([]index.Posting, 0, len(clause.Terms)-1)
			ok := true
			for _, byID := range perTerm[1:] {
				p, exists := byID[id]
				if !exists {
					ok = false
					break
				}
				rest = append(rest, p)
			}
			if ok && hasAdjacentRun(first, rest) {
				docs[id] = struct{}{}
			}
		}
	}

	if collect != nil {
		for i, term := range clause.Terms {
			list := collect[term]
			for id, p := range perTerm[i] {
				if _, ok := docs[id]; !ok {
					continue
				}
				list = append(list, p)
			}
			sort.Slice(list, func(a, b int) bool {
				return list[a].MessageID < list[b].MessageID
			})
			collect[term] = list
		}
	}
	return docs
}

// hasAdjacentRun reports whether any starting position of the first phrase
// term is followed by the remaining terms at consecutive positions.
func hasAdjacentRun(first index.Posting, rest []index.Posting) bool {
	for _, start := range first.Positions {
		run := true
		for i, p := range rest {
			if !containsPosition(p.Positions, start+i+1) {
				run = false
				break
			}
		}
		if run {
			return true
		}
	}
	return false
}

func containsPosition(positions []int, want int) bool {
	// Positions are built in ascending order.
	i := sort.SearchInts(positions, want)
	return i < len(positions) && positions[i] == want
}

// assemble applies pagination, hydrates messages, and attaches snippets.
func (e *Engine) assemble(ctx context.Context, q *query.Query, ranked []ranker.ScoredMessage, limit, offset int) (*Response, error) {
	totalCount := len(ranked)

	start := offset
	if start > totalCount {
		start = totalCount
	}
	end := start + limit
	if end > totalCount {
		end = totalCount
	}
	page := ranked[start:end]

	ids := make([]string, len(page))
	for i, sm := range page {
		ids[i] = sm.MessageID
	}
	hydrated, err := e.messages.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating result messages: %w", err)
	}

	needles := snippetNeedles(q)
	results := make([]Result, 0, len(page))
	for _, sm := range page {
		msg, ok := hydrated[sm.MessageID]
		if !ok {
			// Deleted between ranking and hydration; the next index event
			// will drop its postings too.
			e.logger.Warn("ranked message missing from store", "message_id", sm.MessageID)
			continue
		}
		results = append(results, Result{
			Message:   msg,
			RankScore: sm.Score,
			Snippet:   snippet.Extract(msg.Content, needles, e.cfg.SnippetRadius),
		})
	}

	return &Response{
		Results:    results,
		TotalCount: totalCount,
		Query:      q.Raw,
		Limit:      limit,
		Offset:     offset,
		HasMore:    offset+len(page) < totalCount,
	}, nil
}

// snippetNeedles orders the literal strings to look for in message content:
// phrases first so they take priority over their individual terms.
func snippetNeedles(q *query.Query) []string {
	needles := make([]string, 0, len(q.Clauses))
	for _, clause := range q.Positive() {
		if clause.IsPhrase() {
			needles = append(needles, strings.Join(clause.Terms, " "))
		}
	}
	for _, clause := range q.Positive() {
		if !clause.IsPhrase() {
			needles = append(needles, clause.Terms[0])
		}
	}
	return needles
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func emptyResponse(raw string, limit, offset int) *Response {
	return &Response{
		Results:    []Result{},
		TotalCount: 0,
		Query:      raw,
		Limit:      limit,
		Offset:     offset,
		HasMore:    false,
	}
}
