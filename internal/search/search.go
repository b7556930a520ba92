// Package search answers program questions from the store and falls back to
// the generative backend on a miss.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/fallback"
	"github.com/smartstudy-abroad/smartstudy/internal/logger"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
	"github.com/smartstudy-abroad/smartstudy/internal/store"
)

// ErrInvalidRequest marks a request rejected before any I/O.
var ErrInvalidRequest = errors.New("invalid search request")

// Response sources.
const (
	SourceStore     = "from store"
	SourceGenerated = "freshly generated"
)

// Fetcher fetches and persists fresh program data.
type Fetcher interface {
	FetchFresh(ctx context.Context, req fallback.Request) (fallback.Result, error)
}

// Request is a program lookup.
type Request struct {
	University   string
	Degree       string
	Field        string
	Question     string
	FetchAll     bool
	ForceRefresh bool
}

// Response is the answer to a lookup.
type Response struct {
	Source       string            `json:"source"`
	Data         string            `json:"data"`
	KeyData      map[string]string `json:"key_data,omitempty"`
	QueryType    program.QueryType `json:"query_type"`
	DataYear     int               `json:"data_year,omitempty"`
	OfficialName string            `json:"official_name,omitempty"`
	Record       program.Record    `json:"record"`
}

// Service orchestrates store lookups and fallback fetches.
type Service struct {
	store   store.Store
	fetcher Fetcher
	logger  *zap.Logger
}

// New constructs a Service.
func New(st store.Store, fetcher Fetcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, fetcher: fetcher, logger: log}
}

// Search answers req from the store when the stored record covers it and
// otherwise through the fallback.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	degree, err := validate(req)
	if err != nil {
		return Response{}, err
	}

	kind := program.QueryGeneral
	if q := strings.TrimSpace(req.Question); q != "" {
		kind = program.DetectQueryType(q)
	}
	key := program.NewKey(req.University, degree, req.Field)
	log := logger.WithProgram(s.logger, req.University, string(degree), req.Field)
	log = logger.WithFields(log, zap.String(logger.FieldQueryType, string(kind)))

	if !req.ForceRefresh {
		rec, found, err := s.lookup(ctx, key)
		if err != nil {
			log.Error("store lookup failed", zap.Error(err))
			return Response{}, err
		}
		if found && servable(rec, req, kind) {
			log.Info("served from store", zap.String("key", rec.Key().String()))
			return fromStore(rec, req, kind), nil
		}
		log.Debug("store cannot answer, using fallback", zap.Bool("found", found))
	}

	fr := fallback.Request{
		University: strings.TrimSpace(req.University),
		Degree:     degree,
		Field:      strings.TrimSpace(req.Field),
		Mode:       fallback.ModeQuestion,
		Question:   strings.TrimSpace(req.Question),
		Kind:       kind,
	}
	if req.FetchAll {
		fr.Mode = fallback.ModeFetchAll
	}

	res, err := s.fetcher.FetchFresh(ctx, fr)
	if err != nil {
		return Response{}, err
	}

	data := res.Answer
	if data == "" {
		data = Describe(res.Record, program.FetchAllAttributes)
	}
	return Response{
		Source:       SourceGenerated,
		Data:         data,
		KeyData:      res.Record.Attributes(),
		QueryType:    kind,
		DataYear:     res.Record.DataYear,
		OfficialName: res.OfficialName,
		Record:       res.Record,
	}, nil
}

// lookup tries the exact key first and the fuzzy name match only after a
// miss.
func (s *Service) lookup(ctx context.Context, key program.Key) (program.Record, bool, error) {
	rec, err := s.store.FindOne(ctx, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return program.Record{}, false, err
	}

	rec, err = s.store.FindFuzzy(ctx, key)
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, store.ErrNotFound):
		return program.Record{}, false, nil
	}
	return program.Record{}, false, err
}

func servable(rec program.Record, req Request, kind program.QueryType) bool {
	switch {
	case req.FetchAll:
		return rec.Complete()
	case strings.TrimSpace(req.Question) == "":
		return true
	}
	return rec.Answers(kind)
}

func fromStore(rec program.Record, req Request, kind program.QueryType) Response {
	attrs := kind.Attributes()
	if req.FetchAll || len(attrs) == 0 {
		attrs = program.FetchAllAttributes
	}
	return Response{
		Source:    SourceStore,
		Data:      Describe(rec, attrs),
		KeyData:   rec.Attributes(),
		QueryType: kind,
		DataYear:  rec.DataYear,
		Record:    rec,
	}
}

var attributeLabels = map[string]string{
	program.AttrTuition:        "Tuition",
	program.AttrGPA:            "GPA",
	program.AttrEnglish:        "English",
	program.AttrTests:          "Tests",
	program.AttrScholarships:   "Scholarships",
	program.AttrDeadlineSpring: "Spring deadline",
	program.AttrDeadlineSummer: "Summer deadline",
	program.AttrDeadlineFall:   "Fall deadline",
	program.AttrDuration:       "Duration",
	program.AttrCountry:        "Country",
}

// Describe renders the listed data points of rec. A single attribute is
// rendered as its bare value.
func Describe(rec program.Record, attrs []string) string {
	values := rec.Attributes()
	if len(attrs) == 1 {
		return values[attrs[0]]
	}
	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		if v, ok := values[attr]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", attributeLabels[attr], v))
		}
	}
	return strings.Join(parts, "; ")
}

// Programs lists every stored program.
func (s *Service) Programs(ctx context.Context) ([]program.Record, error) {
	return s.store.FindAll(ctx)
}

// Lookup lists stored programs matching term. An empty term lists all.
func (s *Service) Lookup(ctx context.Context, term string) ([]program.Record, error) {
	if strings.TrimSpace(term) == "" {
		return s.store.FindAll(ctx)
	}
	return s.store.TextSearch(ctx, term)
}

// Delete removes one stored program.
func (s *Service) Delete(ctx context.Context, university, degree, field string) (bool, error) {
	d, err := validate(Request{University: university, Degree: degree, Field: field})
	if err != nil {
		return false, err
	}
	key := program.NewKey(university, d, field)
	deleted, err := s.store.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	s.logger.Info("program deleted", zap.String("key", key.String()), zap.Bool("deleted", deleted))
	return deleted, nil
}

func validate(req Request) (program.Degree, error) {
	if strings.TrimSpace(req.University) == "" {
		return "", fmt.Errorf("%w: university is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Field) == "" {
		return "", fmt.Errorf("%w: field is required", ErrInvalidRequest)
	}
	degree, err := program.ParseDegree(req.Degree)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return degree, nil
}
