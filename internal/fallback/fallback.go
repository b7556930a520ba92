// Package fallback asks the generative backend for program data the store
// does not hold and persists the answer.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/smartstudy-abroad/smartstudy/internal/ai"
	"github.com/smartstudy-abroad/smartstudy/internal/logger"
	"github.com/smartstudy-abroad/smartstudy/internal/normalize"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
	"github.com/smartstudy-abroad/smartstudy/internal/store"
	"github.com/smartstudy-abroad/smartstudy/internal/utils"
)

// ErrGenerationFailed marks a fallback that produced no usable data: the
// generator errored, timed out or answered without the requested data. No
// record is written in that case.
var ErrGenerationFailed = errors.New("generation failed")

const (
	defaultTimeout      = 60 * time.Second
	defaultMaxLogLength = 200
)

// Mode selects the shape of the generative request.
type Mode string

const (
	ModeQuestion Mode = "question"
	ModeFetchAll Mode = "fetch_all"
)

// Request identifies the program to fetch.
type Request struct {
	University string
	Degree     program.Degree
	Field      string
	Mode       Mode
	// Question is used in question mode. An empty question asks for the data
	// point of Kind.
	Question string
	Kind     program.QueryType
}

// Result is a persisted fallback answer.
type Result struct {
	Record program.Record
	// Answer is the value or summary to show for the request.
	Answer string
	// KeyData holds the data points extracted from this answer only.
	KeyData      map[string]string
	OfficialName string
}

// Options tunes a Gateway.
type Options struct {
	Timeout      time.Duration
	SingleFlight bool
	MaxLogLength int
}

// Gateway calls the generator on store misses and upserts the results.
type Gateway struct {
	store        store.Store
	generator    ai.Generator
	timeout      time.Duration
	group        *singleflight.Group
	maxLogLength int
	logger       *zap.Logger
}

// New constructs a Gateway.
func New(st store.Store, gen ai.Generator, opts Options, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxLogLength := opts.MaxLogLength
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	g := &Gateway{
		store:        st,
		generator:    gen,
		timeout:      timeout,
		maxLogLength: maxLogLength,
		logger:       log,
	}
	if opts.SingleFlight {
		g.group = &singleflight.Group{}
	}
	return g
}

// FetchFresh generates the requested data, stores it and returns the stored
// record. Generation failures wrap ErrGenerationFailed; persist failures wrap
// store.ErrUnavailable.
func (g *Gateway) FetchFresh(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}
	if g.group == nil {
		return g.fetch(ctx, req)
	}

	// The shared call survives a caller cancelling but not the deadline of
	// the caller that started it, so a timed-out flight writes nothing.
	ch := g.group.DoChan(flightKey(req), func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithDeadline(flightCtx, deadline)
			defer cancel()
		}
		return g.fetch(flightCtx, req)
	})

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %w", ErrGenerationFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		out := res.Val.(Result)
		if res.Shared {
			g.logger.Debug("fallback result shared", zap.String("key", flightKey(req)))
		}
		return out, nil
	}
}

func (g *Gateway) fetch(ctx context.Context, req Request) (Result, error) {
	log := logger.WithProgram(g.logger, req.University, string(req.Degree), req.Field)
	log = logger.WithFields(log, zap.String("mode", string(req.Mode)))

	raw, err := g.generate(ctx, req)
	if err != nil {
		log.Warn("fallback generation failed", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	result, err := parse(req, raw)
	if err != nil {
		log.Warn("fallback answer rejected",
			zap.String("response", utils.TruncateForLog(raw, g.maxLogLength)),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	rec := program.Record{
		University:     req.University,
		NormalizedName: normalize.Name(req.University),
		Degree:         req.Degree,
		Field:          req.Field,
	}
	if result.OfficialName != "" {
		rec.University = result.OfficialName
	}
	for attr, value := range result.KeyData {
		if err := rec.Set(attr, value); err != nil {
			log.Debug("skipping unknown attribute", zap.String("attribute", attr))
		}
	}

	stored, err := g.store.Upsert(ctx, rec)
	if err != nil {
		log.Error("persisting fallback result", zap.Error(err))
		return Result{}, fmt.Errorf("persist %s: %w", rec.Key(), err)
	}
	result.Record = stored

	log.Info("fallback result stored",
		zap.String("key", stored.Key().String()),
		zap.Int("data_points", len(result.KeyData)),
	)
	return result, nil
}

func (g *Gateway) generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var prompt string
	switch req.Mode {
	case ModeFetchAll:
		prompt = ai.BuildFetchAllPrompt(req.University, req.Degree, req.Field)
	default:
		prompt = ai.BuildQuestionPrompt(req.University, req.Degree, req.Field, req.Question, req.Kind)
	}

	raw, err := g.generator.GenerateContent(ctx, ai.ProgramSystemInstruction(), prompt)
	if err != nil {
		return "", err
	}
	// A generator that ignores the deadline still counts as timed out.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return raw, nil
}

func parse(req Request, raw string) (Result, error) {
	if req.Mode == ModeFetchAll {
		answer, err := ai.ParseFetchAll(raw)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Answer:       answer.Descriptive,
			KeyData:      answer.Attributes,
			OfficialName: answer.OfficialName,
		}, nil
	}

	value, err := ai.ParseQuestion(raw)
	if err != nil {
		return Result{}, err
	}
	result := Result{Answer: value, KeyData: map[string]string{}}
	if attrs := req.Kind.Attributes(); len(attrs) == 1 {
		result.KeyData[attrs[0]] = value
	}
	return result, nil
}

func validate(req Request) error {
	switch {
	case strings.TrimSpace(req.University) == "":
		return errors.New("university is required")
	case req.Degree == "":
		return errors.New("degree is required")
	case strings.TrimSpace(req.Field) == "":
		return errors.New("field is required")
	}
	switch req.Mode {
	case ModeQuestion, ModeFetchAll:
		return nil
	}
	return fmt.Errorf("unknown fallback mode %q", req.Mode)
}

func flightKey(req Request) string {
	key := program.NewKey(req.University, req.Degree, req.Field).String()
	if req.Mode == ModeFetchAll {
		return string(req.Mode) + "|" + key
	}
	return string(req.Mode) + "|" + key + "|" + string(req.Kind) + "|" + normalize.Text(req.Question)
}
