package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/smartstudy-abroad/smartstudy/internal/matching"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
	"github.com/smartstudy-abroad/smartstudy/internal/search"
)

type searchRequest struct {
	University   string `json:"university"`
	Degree       string `json:"degree"`
	Field        string `json:"field"`
	Question     string `json:"question"`
	FetchAll     bool   `json:"fetchAll"`
	ForceRefresh bool   `json:"forceRefresh"`
}

type fetchAllRequest struct {
	University   string `json:"university"`
	Degree       string `json:"degree"`
	Field        string `json:"field"`
	ForceRefresh bool   `json:"force_refresh"`
}

type searchResponse struct {
	Source       string            `json:"source"`
	Data         map[string]string `json:"data"`
	Descriptive  string            `json:"descriptive"`
	QueryType    program.QueryType `json:"query_type"`
	DataYear     int               `json:"data_year,omitempty"`
	OfficialName string            `json:"official_name,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Degree == "" {
		req.Degree = string(program.DegreeMaster)
	}
	s.respondSearch(w, r, search.Request{
		University:   req.University,
		Degree:       req.Degree,
		Field:        req.Field,
		Question:     req.Question,
		FetchAll:     req.FetchAll,
		ForceRefresh: req.ForceRefresh,
	})
}

func (s *Server) handleFetchAll(w http.ResponseWriter, r *http.Request) {
	var req fetchAllRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Degree == "" {
		req.Degree = string(program.DegreeMaster)
	}
	s.respondSearch(w, r, search.Request{
		University:   req.University,
		Degree:       req.Degree,
		Field:        req.Field,
		FetchAll:     true,
		ForceRefresh: req.ForceRefresh,
	})
}

func (s *Server) respondSearch(w http.ResponseWriter, r *http.Request, req search.Request) {
	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := resp.OfficialName
	if name == "" {
		name = resp.Record.University
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Source:       resp.Source,
		Data:         resp.KeyData,
		Descriptive:  resp.Data,
		QueryType:    resp.QueryType,
		DataYear:     resp.DataYear,
		OfficialName: name,
	})
}

// findMeRequest mirrors the find-me form. Numbers may arrive as strings.
type findMeRequest struct {
	Degree            string   `mapstructure:"degree"`
	Field             string   `mapstructure:"field"`
	MaxTuition        *float64 `mapstructure:"maxTuition"`
	MinGPA            *float64 `mapstructure:"minGPA"`
	EnglishTest       string   `mapstructure:"englishTest"`
	EnglishScore      *float64 `mapstructure:"englishScore"`
	Country           string   `mapstructure:"country"`
	PreferScholarship bool     `mapstructure:"preferScholarship"`
	TopK              int      `mapstructure:"top_k"`
}

type universityMatch struct {
	Name           string             `json:"name"`
	Country        string             `json:"country"`
	MatchScore     int                `json:"match_score"`
	Tuition        string             `json:"tuition"`
	Field          string             `json:"field"`
	Degree         program.Degree     `json:"degree"`
	GPARequired    string             `json:"gpa_required"`
	ScoreBreakdown matching.Breakdown `json:"score_breakdown"`
	Reasons        []string           `json:"reasons"`
	WhyMatched     string             `json:"why_matched"`
}

type findMeResponse struct {
	Source          string            `json:"source"`
	Universities    []universityMatch `json:"universities"`
	TotalInDatabase int               `json:"total_in_database"`
}

func (s *Server) handleFindMe(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		s.writeError(w, r, err)
		return
	}
	req, err := decodeFindMe(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	profile := req.profile()
	topK := req.TopK
	if topK == 0 {
		topK = s.opts.DefaultTopK
	}

	matches, err := s.matcher.FindMatches(r.Context(), profile, topK)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := findMeResponse{
		Source:          search.SourceStore,
		Universities:    make([]universityMatch, 0, len(matches.Results)),
		TotalInDatabase: matches.TotalInDatabase,
	}
	for _, m := range matches.Results {
		out.Universities = append(out.Universities, universityMatch{
			Name:           m.Record.University,
			Country:        m.Record.Country,
			MatchScore:     m.Score,
			Tuition:        tuitionLabel(m.Record),
			Field:          m.Record.Field,
			Degree:         m.Record.Degree,
			GPARequired:    m.Record.GPARequirement,
			ScoreBreakdown: m.Breakdown,
			Reasons:        m.Reasons,
			WhyMatched:     whyMatched(m.Breakdown),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeFindMe decodes the loosely typed form body. Blank values count as
// not given.
func decodeFindMe(raw map[string]any) (findMeRequest, error) {
	for k, v := range raw {
		if v == nil {
			delete(raw, k)
			continue
		}
		if str, ok := v.(string); ok && strings.TrimSpace(str) == "" {
			delete(raw, k)
		}
	}

	var req findMeRequest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &req,
	})
	if err != nil {
		return findMeRequest{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return findMeRequest{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if strings.EqualFold(strings.TrimSpace(req.Country), "any") {
		req.Country = ""
	}
	return req, nil
}

func (req findMeRequest) profile() matching.Profile {
	p := matching.Profile{
		Degree:            program.Degree(req.Degree),
		Field:             req.Field,
		MaxTuition:        req.MaxTuition,
		GPA:               req.MinGPA,
		EnglishTest:       program.EnglishTest(req.EnglishTest),
		EnglishScore:      req.EnglishScore,
		Country:           req.Country,
		PreferScholarship: req.PreferScholarship,
	}
	if p.EnglishScore == nil {
		// The form always sends a test name, even without a score.
		p.EnglishTest = ""
	}
	return p
}

func tuitionLabel(rec program.Record) string {
	if v, ok := rec.Tuition(); ok {
		return fmt.Sprintf("$%s/year", thousands(v))
	}
	return "Contact school"
}

func thousands(v float64) string {
	digits := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func whyMatched(b matching.Breakdown) string {
	parts := []string{fmt.Sprintf("Semantic match: %g%%", b.Semantic)}
	if b.Budget != nil {
		parts = append(parts, fmt.Sprintf("Budget fit: %g%%", *b.Budget))
	}
	if b.GPA != nil {
		parts = append(parts, fmt.Sprintf("GPA fit: %g%%", *b.GPA))
	}
	parts = append(parts, fmt.Sprintf("Field match: %g%%", b.Field))
	return strings.Join(parts, ", ")
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Source   string `json:"source"`
	Response string `json:"response"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.chat.Reply(r.Context(), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Source: search.SourceGenerated, Response: reply})
}

type programsResponse struct {
	Source   string           `json:"source"`
	Programs []program.Record `json:"programs"`
}

func (s *Server) handlePrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := s.search.Lookup(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if programs == nil {
		programs = []program.Record{}
	}
	writeJSON(w, http.StatusOK, programsResponse{Source: search.SourceStore, Programs: programs})
}

type deleteRequest struct {
	University string `json:"university"`
	Degree     string `json:"degree"`
	Field      string `json:"field"`
}

func (s *Server) handleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	deleted, err := s.search.Delete(r.Context(), req.University, req.Degree, req.Field)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": search.SourceStore, "deleted": deleted})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"service":   ServiceName,
	})
}
