package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/filtering"
	"github.com/smartstudy-abroad/smartstudy/internal/logger"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
	"github.com/smartstudy-abroad/smartstudy/internal/similarity"
	"github.com/smartstudy-abroad/smartstudy/internal/store"
)

// Matches is the outcome of a find-me request.
type Matches struct {
	Results         []Result `json:"matches"`
	TotalInDatabase int      `json:"total_in_database"`
	Considered      int      `json:"considered"`
}

// Matcher ranks stored programs against a profile. It never calls the
// generative backend; only the similarity function may.
type Matcher struct {
	store      store.Store
	similarity similarity.Func
	scorer     Scorer
	excluded   []string
	logger     *zap.Logger
}

// Options tunes a Matcher.
type Options struct {
	Policy OmittedPolicy
	// ExcludedUniversities lists names never offered as matches.
	ExcludedUniversities []string
}

// NewMatcher constructs a Matcher. A nil similarity function falls back to
// lexical overlap.
func NewMatcher(st store.Store, sim similarity.Func, opts Options, log *zap.Logger) *Matcher {
	if sim == nil {
		sim = similarity.Lexical{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{
		store:      st,
		similarity: sim,
		scorer:     Scorer{Policy: opts.Policy},
		excluded:   opts.ExcludedUniversities,
		logger:     log,
	}
}

// FindMatches validates the profile, filters the stored programs and returns
// the top k by composite score. An empty store yields an empty result.
func (m *Matcher) FindMatches(ctx context.Context, p Profile, k int) (Matches, error) {
	if err := p.Validate(); err != nil {
		return Matches{}, err
	}
	k, err := ValidateTopK(k)
	if err != nil {
		return Matches{}, err
	}

	records, err := m.store.FindAll(ctx)
	if err != nil {
		return Matches{}, fmt.Errorf("load programs: %w", err)
	}

	log := m.logger.With(zap.String(logger.FieldField, p.Field), zap.String(logger.FieldDegree, string(p.Degree)))

	candidates, err := filtering.Run(ctx, filterConfig(p), filtering.Deps{Logger: log}, filtering.Default(m.excluded), filtering.NewCandidates(records))
	if err != nil {
		return Matches{}, fmt.Errorf("filter programs: %w", err)
	}

	profileText := ProfileText(p)
	results := make([]Result, 0, candidates.Len())
	for _, c := range candidates.Items {
		if err := ctx.Err(); err != nil {
			return Matches{}, err
		}
		semantic, err := m.similarity.Similarity(ctx, profileText, RecordText(c.Record))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Matches{}, ctxErr
			}
			log.Warn("similarity failed, scoring as dissimilar",
				zap.String("program", c.Record.Key().String()),
				zap.Error(err),
			)
			semantic = 0
		}
		res := m.scorer.Score(p, c.Record, semantic)
		res.Reasons = append(res.Reasons, c.Notes...)
		results = append(results, res)
	}

	ranked := Rank(results, k)
	log.Info("matches ranked",
		zap.Int("total", len(records)),
		zap.Int("considered", len(results)),
		zap.Int("returned", len(ranked)),
	)

	return Matches{
		Results:         ranked,
		TotalInDatabase: len(records),
		Considered:      len(results),
	}, nil
}

func filterConfig(p Profile) *filtering.Config {
	cfg := &filtering.Config{
		Country:           p.Country,
		PreferScholarship: p.PreferScholarship,
	}
	if degree, err := program.ParseDegree(string(p.Degree)); err == nil {
		cfg.Degree = degree
	}
	if p.EnglishScore != nil {
		if test, ok := program.ParseEnglishTest(string(p.EnglishTest)); ok {
			cfg.EnglishTest = test
			cfg.EnglishScore = *p.EnglishScore
		}
	}
	return cfg
}
