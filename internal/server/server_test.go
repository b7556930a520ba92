package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/smartstudy-abroad/smartstudy/internal/chat"
	"github.com/smartstudy-abroad/smartstudy/internal/fallback"
	"github.com/smartstudy-abroad/smartstudy/internal/matching"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
	"github.com/smartstudy-abroad/smartstudy/internal/search"
	"github.com/smartstudy-abroad/smartstudy/internal/store"
)

type fakeSearcher struct {
	resp    search.Response
	err     error
	got     search.Request
	records []program.Record
	term    string
	deleted bool
}

func (f *fakeSearcher) Search(_ context.Context, req search.Request) (search.Response, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeSearcher) Lookup(_ context.Context, term string) ([]program.Record, error) {
	f.term = term
	return f.records, f.err
}

func (f *fakeSearcher) Delete(context.Context, string, string, string) (bool, error) {
	return f.deleted, f.err
}

type fakeMatcher struct {
	matches matching.Matches
	err     error
	profile matching.Profile
	k       int
}

func (f *fakeMatcher) FindMatches(_ context.Context, p matching.Profile, k int) (matching.Matches, error) {
	f.profile, f.k = p, k
	if err := p.Validate(); err != nil {
		return matching.Matches{}, err
	}
	return f.matches, f.err
}

type fakeChatter struct {
	reply string
	err   error
}

func (f *fakeChatter) Reply(context.Context, string) (string, error) {
	return f.reply, f.err
}

func newTestServer(s *fakeSearcher, m *fakeMatcher, c *fakeChatter) *Server {
	srv := New(s, m, c, Options{DefaultTopK: 5}, zap.NewNop())
	srv.now = func() time.Time { return time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC) }
	return srv
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, out
}

func TestSearchEndpoint(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{resp: search.Response{
		Source:    search.SourceStore,
		Data:      "$61,990 per year",
		KeyData:   map[string]string{program.AttrTuition: "$61,990 per year"},
		QueryType: program.QueryTuition,
		DataYear:  2026,
		Record:    program.Record{University: "MIT"},
	}}
	h := newTestServer(s, &fakeMatcher{}, &fakeChatter{}).Handler()

	rec, body := do(t, h, http.MethodPost, "/api/search", `{"university":"MIT","field":"Computer Science","question":"tuition?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["source"] != "from store" || body["descriptive"] != "$61,990 per year" || body["official_name"] != "MIT" {
		t.Fatalf("unexpected body: %v", body)
	}
	if s.got.Degree != "Master" {
		t.Fatalf("default degree = %q", s.got.Degree)
	}
}

func TestFetchAllEndpoint(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{resp: search.Response{Source: search.SourceGenerated}}
	h := newTestServer(s, &fakeMatcher{}, &fakeChatter{}).Handler()

	rec, body := do(t, h, http.MethodPost, "/api/fetch_all", `{"university":"Caltech","degree":"PhD","field":"Physics","force_refresh":true}`)
	if rec.Code != http.StatusOK || body["source"] != "freshly generated" {
		t.Fatalf("unexpected response %d %v", rec.Code, body)
	}
	if !s.got.FetchAll || !s.got.ForceRefresh {
		t.Fatalf("request not forwarded as fetch-all refresh: %+v", s.got)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: search.ErrInvalidRequest, want: http.StatusBadRequest},
		{name: "store unavailable", err: store.Unavailable("find one", errors.New("dial tcp")), want: http.StatusServiceUnavailable},
		{name: "generation failed", err: errors.Join(fallback.ErrGenerationFailed, context.DeadlineExceeded), want: http.StatusBadGateway},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestServer(&fakeSearcher{err: tt.err}, &fakeMatcher{}, &fakeChatter{}).Handler()
			rec, body := do(t, h, http.MethodPost, "/api/search", `{"university":"MIT","field":"CS"}`)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if body["source"] != "error" || body["error"] == "" {
				t.Fatalf("error body not well formed: %v", body)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeSearcher{}, &fakeMatcher{}, &fakeChatter{}).Handler()
	rec, body := do(t, h, http.MethodPost, "/api/search", `{"university":`)
	if rec.Code != http.StatusBadRequest || body["source"] != "error" {
		t.Fatalf("unexpected response %d %v", rec.Code, body)
	}
}

func TestFindMeEndpoint(t *testing.T) {
	t.Parallel()

	budget := 80.0
	m := &fakeMatcher{matches: matching.Matches{
		TotalInDatabase: 12,
		Results: []matching.Result{{
			Record:    program.Record{University: "ETH Zurich", Country: "Switzerland", Degree: program.DegreeMaster, Field: "Computer Science", TuitionFee: "1500 CHF"},
			Score:     84,
			Breakdown: matching.Breakdown{Semantic: 60, Budget: &budget, Field: 100},
			Reasons:   []string{"Exact field match"},
		}},
	}}
	h := newTestServer(&fakeSearcher{}, m, &fakeChatter{}).Handler()

	rec, body := do(t, h, http.MethodPost, "/api/findme", `{
		"degree": "Master",
		"field": "Computer Science",
		"maxTuition": "50000",
		"minGPA": 3.5,
		"englishTest": "IELTS",
		"englishScore": "",
		"country": "Any",
		"preferScholarship": "true",
		"top_k": "3"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %v", rec.Code, body)
	}

	p := m.profile
	if p.MaxTuition == nil || *p.MaxTuition != 50000 {
		t.Fatalf("max tuition = %v", p.MaxTuition)
	}
	if p.GPA == nil || *p.GPA != 3.5 {
		t.Fatalf("gpa = %v", p.GPA)
	}
	if p.EnglishScore != nil || p.EnglishTest != "" {
		t.Fatalf("blank english score must leave english unset: %+v", p)
	}
	if p.Country != "" || !p.PreferScholarship || m.k != 3 {
		t.Fatalf("unexpected profile %+v k=%d", p, m.k)
	}

	if body["total_in_database"] != float64(12) || body["source"] != "from store" {
		t.Fatalf("unexpected body: %v", body)
	}
	unis := body["universities"].([]any)
	first := unis[0].(map[string]any)
	if first["name"] != "ETH Zurich" || first["match_score"] != float64(84) || first["tuition"] != "$1,500/year" {
		t.Fatalf("unexpected match: %v", first)
	}
	if first["why_matched"] != "Semantic match: 60%, Budget fit: 80%, Field match: 100%" {
		t.Fatalf("why matched = %v", first["why_matched"])
	}
}

func TestFindMeDefaultsAndErrors(t *testing.T) {
	t.Parallel()

	m := &fakeMatcher{}
	h := newTestServer(&fakeSearcher{}, m, &fakeChatter{}).Handler()

	rec, body := do(t, h, http.MethodPost, "/api/findme", `{"field":"Physics"}`)
	if rec.Code != http.StatusOK || m.k != 5 {
		t.Fatalf("status %d k %d", rec.Code, m.k)
	}
	if unis, ok := body["universities"].([]any); !ok || len(unis) != 0 {
		t.Fatalf("empty result must be an empty list: %v", body)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/findme", `{"field":"Physics","maxTuition":"lots"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	for _, body := range []string{
		`{"field":"Physics","minGPA":"NaN"}`,
		`{"field":"Physics","maxTuition":"NaN"}`,
		`{"field":"Physics","maxTuition":"+Inf"}`,
		`{"field":"Physics","englishTest":"IELTS","englishScore":"NaN"}`,
	} {
		rec, _ = do(t, h, http.MethodPost, "/api/findme", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", body, rec.Code)
		}
	}

	m.err = matching.ErrInvalidProfile
	rec, _ = do(t, h, http.MethodPost, "/api/findme", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeSearcher{}, &fakeMatcher{}, &fakeChatter{reply: "Apply early."}).Handler()
	rec, body := do(t, h, http.MethodPost, "/api/chat", `{"message":"When should I apply?"}`)
	if rec.Code != http.StatusOK || body["response"] != "Apply early." {
		t.Fatalf("unexpected response %d %v", rec.Code, body)
	}

	h = newTestServer(&fakeSearcher{}, &fakeMatcher{}, &fakeChatter{err: chat.ErrReplyFailed}).Handler()
	rec, _ = do(t, h, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestProgramsEndpoints(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{records: []program.Record{{University: "MIT"}}, deleted: true}
	h := newTestServer(s, &fakeMatcher{}, &fakeChatter{}).Handler()

	rec, body := do(t, h, http.MethodGet, "/api/programs?q=usa", "")
	if rec.Code != http.StatusOK || len(body["programs"].([]any)) != 1 || s.term != "usa" {
		t.Fatalf("unexpected programs response %d %v term=%q", rec.Code, body, s.term)
	}

	rec, body = do(t, h, http.MethodDelete, "/api/programs", `{"university":"MIT","degree":"Master","field":"CS"}`)
	if rec.Code != http.StatusOK || body["deleted"] != true {
		t.Fatalf("unexpected delete response %d %v", rec.Code, body)
	}
}

func TestHealthEndpointAndAccessLog(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	srv := New(&fakeSearcher{}, &fakeMatcher{}, &fakeChatter{}, Options{}, zap.New(core))
	srv.now = func() time.Time { return time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC) }

	rec, body := do(t, srv.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "ok" || body["service"] != ServiceName || body["timestamp"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected health body: %v", body)
	}

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Fatalf("logged status = %v", got)
	}
}
