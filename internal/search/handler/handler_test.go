package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlechat/message-search/internal/search/engine"
	apperrors "github.com/huddlechat/message-search/pkg/errors"
)

type fakeSearcher struct {
	lastRequest engine.Request
	response    *engine.Response
	err         error
}

func (f *fakeSearcher) Search(ctx context.Context, req engine.Request) (*engine.Response, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func okResponse() *engine.Response {
	return &engine.Response{
		Results:    []engine.Result{},
		TotalCount: 0,
		Query:      "deploy",
		Limit:      20,
		Offset:     0,
		HasMore:    false,
	}
}

func doSearch(t *testing.T, searcher *fakeSearcher, target string, withUser bool) *httptest.ResponseRecorder {
	t.Helper()
	h := New(searcher, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if withUser {
		req.Header.Set("X-User-ID", "alice")
	}
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSearchMissingUserHeader(t *testing.T) {
	rec := doSearch(t, &fakeSearcher{response: okResponse()}, "/api/v1/search?q=deploy", false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "UNAUTHENTICATED", body.Error.Code)
	assert.False(t, body.Success)
}

func TestSearchPassesRequestThrough(t *testing.T) {
	searcher := &fakeSearcher{response: okResponse()}
	rec := doSearch(t, searcher, "/api/v1/search?q=deploy+friday&limit=5&offset=10&room_id=r1", true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, engine.Request{
		UserID: "alice",
		Query:  "deploy friday",
		RoomID: "r1",
		Limit:  5,
		Offset: 10,
	}, searcher.lastRequest)
}

func TestSearchMalformedPaginationFallsBackToDefaults(t *testing.T) {
	searcher := &fakeSearcher{response: okResponse()}
	rec := doSearch(t, searcher, "/api/v1/search?q=deploy&limit=abc&offset=-", true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, searcher.lastRequest.Limit)
	assert.Zero(t, searcher.lastRequest.Offset)
}

func TestSearchSuccessPayload(t *testing.T) {
	searcher := &fakeSearcher{response: &engine.Response{
		Results:    []engine.Result{},
		TotalCount: 42,
		Query:      "deploy",
		Limit:      20,
		Offset:     20,
		HasMore:    true,
	}}
	rec := doSearch(t, searcher, "/api/v1/search?q=deploy&offset=20", true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(42), body["total_count"])
	assert.Equal(t, "deploy", body["query"])
	assert.Equal(t, float64(20), body["limit"])
	assert.Equal(t, float64(20), body["offset"])
	assert.Equal(t, true, body["has_more"])
	assert.NotNil(t, body["results"])
}

func TestSearchErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty query", apperrors.ErrEmptyQuery, http.StatusBadRequest, "EMPTY_QUERY"},
		{"too short", apperrors.ErrQueryTooShort, http.StatusBadRequest, "QUERY_TOO_SHORT"},
		{"too long", apperrors.ErrQueryTooLong, http.StatusBadRequest, "QUERY_TOO_LONG"},
		{"invalid", apperrors.ErrInvalidQuery, http.StatusBadRequest, "INVALID_QUERY"},
		{"denied", apperrors.ErrAccessDenied, http.StatusForbidden, "ACCESS_DENIED"},
		{"timeout", apperrors.ErrSearchTimeout, http.StatusServiceUnavailable, "SEARCH_TIMEOUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doSearch(t, &fakeSearcher{err: tc.err}, "/api/v1/search?q=deploy", true)

			assert.Equal(t, tc.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.wantCode, body.Error.Code)
			assert.Equal(t, tc.wantStatus, body.Error.Status)
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestSearchInternalErrorHidesDetail(t *testing.T) {
	searcher := &fakeSearcher{err: assert.AnError}
	rec := doSearch(t, searcher, "/api/v1/search?q=deploy", true)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL", body.Error.Code)
	assert.NotContains(t, body.Error.Message, assert.AnError.Error())
}

func TestCacheStatsDisabled(t *testing.T) {
	h := New(&fakeSearcher{}, nil, nil, nil)
	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "disabled", body["status"])
}

func TestCacheInvalidateDisabled(t *testing.T) {
	h := New(&fakeSearcher{}, nil, nil, nil)
	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
