// Package program defines the university program record shared by the store,
// the AI fallback and the matcher.
package program

import (
	"fmt"
	"strings"
	"time"

	"github.com/smartstudy-abroad/smartstudy/internal/normalize"
)

// Degree is the level of a program.
type Degree string

const (
	DegreeBachelor Degree = "Bachelor"
	DegreeMaster   Degree = "Master"
	DegreePhD      Degree = "PhD"
)

// ParseDegree accepts the common spellings used by the frontend and by model
// answers ("masters", "MSc", "doctorate", ...).
func ParseDegree(s string) (Degree, error) {
	switch normalize.Text(strings.NewReplacer("'", "", "’", "", ".", "").Replace(s)) {
	case "bachelor", "bachelors", "undergraduate", "bsc", "ba", "bs", "beng":
		return DegreeBachelor, nil
	case "master", "masters", "graduate", "msc", "ma", "ms", "meng", "mba":
		return DegreeMaster, nil
	case "phd", "doctorate", "doctoral", "dphil":
		return DegreePhD, nil
	default:
		return "", fmt.Errorf("unknown degree %q", s)
	}
}

// Key identifies a program: normalized university name, degree and
// normalized field.
type Key struct {
	NormalizedName string
	Degree         Degree
	Field          string
}

// NewKey derives a Key from user supplied values.
func NewKey(university string, degree Degree, field string) Key {
	return Key{
		NormalizedName: normalize.Name(university),
		Degree:         degree,
		Field:          normalize.Text(field),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.NormalizedName, k.Degree, k.Field)
}

// Deadlines holds application deadlines per intake.
type Deadlines struct {
	Spring string `json:"deadline_spring,omitempty"`
	Summer string `json:"deadline_summer,omitempty"`
	Fall   string `json:"deadline_fall,omitempty"`
}

// Record is one (university, degree, field) offering.
type Record struct {
	University         string    `json:"university"`
	NormalizedName     string    `json:"normalized_name"`
	Degree             Degree    `json:"degree"`
	Field              string    `json:"field"`
	Country            string    `json:"country,omitempty"`
	TuitionFee         string    `json:"tuition_fees,omitempty"`
	GPARequirement     string    `json:"gpa_requirement,omitempty"`
	EnglishRequirement string    `json:"english_requirements,omitempty"`
	TestRequirements   string    `json:"test_requirements,omitempty"`
	Scholarships       string    `json:"scholarships,omitempty"`
	Deadlines          Deadlines `json:"deadlines"`
	ProgramDuration    string    `json:"program_duration,omitempty"`
	DataYear           int       `json:"data_year,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Key returns the lookup key of the record. The normalized name is always
// recomputed from the display name unless the record carries an explicit one.
func (r Record) Key() Key {
	name := r.NormalizedName
	if name == "" {
		name = normalize.Name(r.University)
	}
	return Key{NormalizedName: name, Degree: r.Degree, Field: normalize.Text(r.Field)}
}

// Tuition returns the numeric yearly tuition and whether one could be parsed.
func (r Record) Tuition() (float64, bool) {
	return ParseAmount(r.TuitionFee)
}

// GPA returns the required GPA on a 4.0 scale and whether it is known.
func (r Record) GPA() (float64, bool) {
	return ParseGPA(r.GPARequirement)
}

// English returns the parsed minimum English test scores.
func (r Record) English() EnglishScores {
	return ParseEnglish(r.EnglishRequirement)
}

// HasScholarship reports whether the record advertises any scholarship.
func (r Record) HasScholarship() bool {
	s := normalize.Text(r.Scholarships)
	switch s {
	case "", "none", "no", "n/a", "na", "not available", "false":
		return false
	}
	return !strings.HasPrefix(s, "no ")
}

// Attributes returns the stored data points keyed the way API clients expect.
// Empty values are omitted.
func (r Record) Attributes() map[string]string {
	attrs := map[string]string{
		AttrTuition:        r.TuitionFee,
		AttrGPA:            r.GPARequirement,
		AttrEnglish:        r.EnglishRequirement,
		AttrTests:          r.TestRequirements,
		AttrScholarships:   r.Scholarships,
		AttrDeadlineSpring: r.Deadlines.Spring,
		AttrDeadlineSummer: r.Deadlines.Summer,
		AttrDeadlineFall:   r.Deadlines.Fall,
		AttrDuration:       r.ProgramDuration,
		AttrCountry:        r.Country,
	}
	for k, v := range attrs {
		if strings.TrimSpace(v) == "" {
			delete(attrs, k)
		}
	}
	return attrs
}

// Set assigns a single data point by attribute name. Unknown names are
// reported as an error.
func (r *Record) Set(attr, value string) error {
	value = strings.TrimSpace(value)
	switch attr {
	case AttrTuition:
		r.TuitionFee = value
	case AttrGPA:
		r.GPARequirement = value
	case AttrEnglish:
		r.EnglishRequirement = value
	case AttrTests:
		r.TestRequirements = value
	case AttrScholarships:
		r.Scholarships = value
	case AttrDeadlineSpring:
		r.Deadlines.Spring = value
	case AttrDeadlineSummer:
		r.Deadlines.Summer = value
	case AttrDeadlineFall:
		r.Deadlines.Fall = value
	case AttrDuration:
		r.ProgramDuration = value
	case AttrCountry:
		r.Country = value
	default:
		return fmt.Errorf("unknown attribute %q", attr)
	}
	return nil
}

// Complete reports whether every fetch-all data point is present.
func (r Record) Complete() bool {
	attrs := r.Attributes()
	for _, attr := range FetchAllAttributes {
		if _, ok := attrs[attr]; !ok {
			return false
		}
	}
	return true
}

// Merge copies non-empty attributes from update into r. Identity fields and
// timestamps are left untouched.
func (r *Record) Merge(update Record) {
	for attr, value := range update.Attributes() {
		_ = r.Set(attr, value)
	}
	if update.DataYear != 0 {
		r.DataYear = update.DataYear
	}
}
