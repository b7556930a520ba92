package matching

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/smartstudy-abroad/smartstudy/internal/program"
)

// ErrInvalidProfile marks a requirement profile rejected before any I/O.
var ErrInvalidProfile = errors.New("invalid requirement profile")

const (
	DefaultTopK = 5
	MaxTopK     = 50
)

// Profile holds a user's stated requirements for a "find me" request. Nil
// pointers mean the criterion was not given.
type Profile struct {
	Degree            program.Degree
	Field             string
	MaxTuition        *float64
	GPA               *float64
	EnglishTest       program.EnglishTest
	EnglishScore      *float64
	Country           string
	PreferScholarship bool
}

// Validate checks the profile. Failures wrap ErrInvalidProfile.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Field) == "" {
		return invalid("field is required")
	}
	if p.Degree != "" {
		if _, err := program.ParseDegree(string(p.Degree)); err != nil {
			return invalid(err.Error())
		}
	}
	for name, v := range map[string]*float64{
		"maximum tuition": p.MaxTuition,
		"gpa":             p.GPA,
		"english score":   p.EnglishScore,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return invalid(name + " must be a finite number")
		}
	}
	if p.MaxTuition != nil && *p.MaxTuition < 0 {
		return invalid("maximum tuition must not be negative")
	}
	if p.GPA != nil && (*p.GPA < 0 || *p.GPA > 4) {
		return invalid("gpa must be between 0 and 4")
	}
	if p.EnglishScore != nil {
		if *p.EnglishScore < 0 {
			return invalid("english score must not be negative")
		}
		if p.EnglishTest == "" {
			return invalid("english test is required with an english score")
		}
	}
	if p.EnglishTest != "" {
		if _, ok := program.ParseEnglishTest(string(p.EnglishTest)); !ok {
			return invalid(fmt.Sprintf("unsupported english test %q", p.EnglishTest))
		}
	}
	return nil
}

// ValidateTopK checks a requested result count; zero selects the default.
func ValidateTopK(k int) (int, error) {
	switch {
	case k == 0:
		return DefaultTopK, nil
	case k < 0 || k > MaxTopK:
		return 0, invalid(fmt.Sprintf("top_k must be between 1 and %d", MaxTopK))
	}
	return k, nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidProfile, msg)
}
