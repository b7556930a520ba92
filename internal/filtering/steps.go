package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/normalize"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
)

type degreeFilter struct {
	degree program.Degree
}

// NewDegree creates a filter that keeps programs of the requested degree.
func NewDegree() Filter {
	return &degreeFilter{}
}

func (f *degreeFilter) Name() string { return "degree" }

func (f *degreeFilter) Disable(string) {}

func (f *degreeFilter) IsEnabled() bool { return true }

func (f *degreeFilter) Validate(cfg *Config) error {
	f.degree = ""
	if cfg != nil {
		f.degree = cfg.Degree
	}
	return nil
}

func (f *degreeFilter) Apply(_ context.Context, _ Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if f.degree == "" {
		return c, Step{Initial: initial, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(item *Candidate) bool {
		return item.Record.Degree != f.degree
	})

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *degreeFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true, Details: map[string]string{"degree": string(f.degree)}}
}

type excludedUniversitiesFilter struct {
	configured []string
	names      map[string]struct{}
}

// NewExcludedUniversities creates a filter that removes programs of the
// configured universities. Names are normalized, so abbreviations work.
func NewExcludedUniversities(universities []string) Filter {
	return &excludedUniversitiesFilter{configured: universities}
}

func (f *excludedUniversitiesFilter) Name() string { return "excluded_universities" }

func (f *excludedUniversitiesFilter) Disable(string) {}

func (f *excludedUniversitiesFilter) IsEnabled() bool { return true }

func (f *excludedUniversitiesFilter) Validate(cfg *Config) error {
	f.names = make(map[string]struct{})
	all := append([]string{}, f.configured...)
	if cfg != nil {
		all = append(all, cfg.ExcludedUniversities...)
	}
	for _, name := range all {
		if n := normalize.Name(name); n != "" {
			f.names[n] = struct{}{}
		}
	}
	return nil
}

func (f *excludedUniversitiesFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if len(f.names) == 0 {
		return c, Step{Initial: initial, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(item *Candidate) bool {
		_, found := f.names[item.Record.Key().NormalizedName]
		return found
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding programs of configured universities",
			zap.Strings("excluded_programs", excluded),
			zap.Int("programs_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *excludedUniversitiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.configured) > 0 {
		details["universities"] = strings.Join(f.configured, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type countryFilter struct {
	country string
}

// NewCountry creates a filter that keeps programs in the preferred country.
// "any" or an empty preference disables it for the request.
func NewCountry() Filter {
	return &countryFilter{}
}

func (f *countryFilter) Name() string { return "country" }

func (f *countryFilter) Disable(string) {}

func (f *countryFilter) IsEnabled() bool { return true }

func (f *countryFilter) Validate(cfg *Config) error {
	f.country = ""
	if cfg != nil {
		f.country = CanonicalCountry(cfg.Country)
	}
	if f.country == "any" {
		f.country = ""
	}
	return nil
}

func (f *countryFilter) Apply(_ context.Context, _ Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if f.country == "" {
		return c, Step{Initial: initial, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(item *Candidate) bool {
		return CanonicalCountry(item.Record.Country) != f.country
	})

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *countryFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true, Details: map[string]string{"country": f.country}}
}

var countryAliases = map[string]string{
	"usa":                      "united states",
	"us":                       "united states",
	"u.s.":                     "united states",
	"u.s.a.":                   "united states",
	"america":                  "united states",
	"united states of america": "united states",
	"uk":                       "united kingdom",
	"u.k.":                     "united kingdom",
	"england":                  "united kingdom",
	"britain":                  "united kingdom",
	"great britain":            "united kingdom",
}

// CanonicalCountry folds case, whitespace and common aliases so "USA" and
// "United States" compare equal.
func CanonicalCountry(s string) string {
	s = normalize.Text(s)
	if alias, ok := countryAliases[s]; ok {
		return alias
	}
	return s
}

type scholarshipFilter struct {
	prefer bool
}

// NewScholarship creates a filter that keeps programs advertising
// scholarships when the request prefers them.
func NewScholarship() Filter {
	return &scholarshipFilter{}
}

func (f *scholarshipFilter) Name() string { return "scholarship" }

func (f *scholarshipFilter) Disable(string) {}

func (f *scholarshipFilter) IsEnabled() bool { return true }

func (f *scholarshipFilter) Validate(cfg *Config) error {
	f.prefer = cfg != nil && cfg.PreferScholarship
	return nil
}

func (f *scholarshipFilter) Apply(_ context.Context, _ Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if !f.prefer {
		return c, Step{Initial: initial, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(item *Candidate) bool {
		return !item.Record.HasScholarship()
	})

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *scholarshipFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true, Details: map[string]string{"prefer": strconv.FormatBool(f.prefer)}}
}

type englishFilter struct {
	disabled bool
	reason   string
	test     program.EnglishTest
	score    float64
}

// NewEnglish creates a step that annotates each candidate with whether the
// applicant's English score meets its minimum. It never drops candidates.
func NewEnglish() Filter {
	return &englishFilter{}
}

func (f *englishFilter) Name() string { return "english" }

func (f *englishFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *englishFilter) IsEnabled() bool { return !f.disabled }

func (f *englishFilter) Validate(cfg *Config) error {
	f.test, f.score = "", 0
	if cfg == nil || cfg.EnglishTest == "" {
		return nil
	}
	if _, ok := program.ParseEnglishTest(string(cfg.EnglishTest)); !ok {
		return fmt.Errorf("unsupported english test %q", cfg.EnglishTest)
	}
	f.test, f.score = cfg.EnglishTest, cfg.EnglishScore
	return nil
}

func (f *englishFilter) Apply(_ context.Context, _ Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if f.test == "" || f.score <= 0 {
		return c, Step{Initial: initial, Left: c.Len()}, nil
	}

	for _, item := range c.Items {
		minimum, ok := item.Record.English().Minimum(f.test)
		if !ok {
			continue
		}
		if f.score >= minimum {
			item.Notes = append(item.Notes, fmt.Sprintf("You meet the %s requirement (%s)", f.test, formatScore(minimum)))
		} else {
			item.Notes = append(item.Notes, fmt.Sprintf("%s requirement is %s (yours: %s)", f.test, formatScore(minimum), formatScore(f.score)))
		}
	}

	return c, Step{Initial: initial, Left: c.Len()}, nil
}

func (f *englishFilter) Status() Status {
	details := map[string]string{}
	if f.test != "" {
		details["test"] = string(f.test)
		details["score"] = formatScore(f.score)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
