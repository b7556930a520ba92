// Package matching ranks stored programs against a requirement profile.
package matching

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/smartstudy-abroad/smartstudy/internal/normalize"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
)

// Composite weights. They sum to 1.
const (
	WeightSemantic = 0.40
	WeightBudget   = 0.25
	WeightGPA      = 0.20
	WeightField    = 0.15
)

// OmittedPolicy decides how criteria missing from the profile count.
type OmittedPolicy string

const (
	// NeutralOmitted scores an omitted budget or GPA criterion as 100 and
	// keeps the fixed weights.
	NeutralOmitted OmittedPolicy = "neutral"
	// RenormalizeOmitted drops omitted criteria and spreads their weight over
	// the remaining sub-scores.
	RenormalizeOmitted OmittedPolicy = "renormalize"
)

// ParseOmittedPolicy accepts "neutral", "renormalize" or empty for neutral.
func ParseOmittedPolicy(s string) (OmittedPolicy, error) {
	switch OmittedPolicy(normalize.Text(s)) {
	case "", NeutralOmitted:
		return NeutralOmitted, nil
	case RenormalizeOmitted:
		return RenormalizeOmitted, nil
	}
	return "", fmt.Errorf("unknown omitted criteria policy %q", s)
}

// Breakdown holds the sub-scores, each 0 to 100. Budget and GPA are nil when
// the profile omitted the criterion.
type Breakdown struct {
	Semantic float64  `json:"semantic_similarity"`
	Budget   *float64 `json:"budget_fit"`
	GPA      *float64 `json:"gpa_fit"`
	Field    float64  `json:"field_match"`
}

// Result is a scored program.
type Result struct {
	Record    program.Record `json:"record"`
	Score     int            `json:"match_percentage"`
	Breakdown Breakdown      `json:"score_breakdown"`
	Reasons   []string       `json:"reasons"`
}

// Scorer computes composite match scores. The zero value uses the neutral
// policy.
type Scorer struct {
	Policy OmittedPolicy
}

// Score rates rec against p given a semantic similarity in [0, 100]. The
// result depends only on its inputs.
func (s Scorer) Score(p Profile, rec program.Record, semantic float64) Result {
	semantic = clamp(semantic)
	field := FieldScore(p.Field, rec.Field)

	var (
		budget, gpa       float64
		budgetOK, gpaOK   bool
		tuition, required float64
		hasTuition        bool
		hasRequired       bool
	)
	tuition, hasTuition = rec.Tuition()
	required, hasRequired = rec.GPA()

	if p.MaxTuition != nil {
		budget, budgetOK = BudgetScore(*p.MaxTuition, tuition, hasTuition), true
	}
	if p.GPA != nil {
		gpa, gpaOK = GPAScore(*p.GPA, required, hasRequired), true
	}

	weighted := WeightSemantic*semantic + WeightField*field
	total := WeightSemantic + WeightField
	breakdown := Breakdown{Semantic: round1(semantic), Field: round1(field)}

	switch {
	case budgetOK:
		weighted += WeightBudget * budget
		total += WeightBudget
		breakdown.Budget = ptr(round1(budget))
	case s.Policy != RenormalizeOmitted:
		weighted += WeightBudget * 100
		total += WeightBudget
	}
	switch {
	case gpaOK:
		weighted += WeightGPA * gpa
		total += WeightGPA
		breakdown.GPA = ptr(round1(gpa))
	case s.Policy != RenormalizeOmitted:
		weighted += WeightGPA * 100
		total += WeightGPA
	}

	composite := weighted
	if s.Policy == RenormalizeOmitted {
		composite = weighted / total
	}

	result := Result{
		Record:    rec,
		Score:     int(math.Round(clamp(composite))),
		Breakdown: breakdown,
	}
	result.Reasons = reasons(p, rec, breakdown, tuition, hasTuition, required, hasRequired)
	return result
}

// BudgetScore is 100 when tuition fits under max or is unknown, and falls
// linearly to 0 when tuition reaches twice the maximum.
func BudgetScore(max, tuition float64, known bool) float64 {
	if !known || tuition <= max {
		return 100
	}
	if max <= 0 {
		return 0
	}
	return clamp(100 * (1 - (tuition-max)/max))
}

// GPAScore is 100 when the user meets the requirement or it is unknown and
// loses everything over a gap of 0.5.
func GPAScore(user, required float64, known bool) float64 {
	if !known || required <= user {
		return 100
	}
	return clamp(100 * (1 - (required-user)/0.5))
}

var relatedFields = [][]string{
	{"computer science", "software engineering", "data science", "artificial intelligence", "machine learning", "information technology", "computing", "cs", "it", "ai"},
	{"business", "mba", "management", "finance", "marketing", "economics", "accounting"},
	{"engineering", "mechanical", "electrical", "civil", "chemical", "aerospace"},
	{"medicine", "healthcare", "nursing", "public health", "biomedical", "pharmacy"},
	{"law", "legal", "international law"},
	{"arts", "humanities", "literature", "history", "philosophy"},
}

// FieldScore grades field overlap: 100 exact, 80 containment either way, 60
// same related group, otherwise 0.
func FieldScore(wanted, offered string) float64 {
	a, b := words(wanted), words(offered)
	switch {
	case a == "" || b == "":
		return 0
	case a == b:
		return 100
	case strings.Contains(" "+a+" ", " "+b+" ") || strings.Contains(" "+b+" ", " "+a+" "):
		return 80
	case related(a, b):
		return 60
	}
	return 0
}

func related(a, b string) bool {
	for _, group := range relatedFields {
		if inGroup(a, group) && inGroup(b, group) {
			return true
		}
	}
	return false
}

// inGroup matches keywords on word boundaries so "it" does not hit
// "political".
func inGroup(field string, group []string) bool {
	padded := " " + field + " "
	for _, kw := range group {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}

// words lowercases s and joins its alphanumeric runs with single spaces.
func words(s string) string {
	return strings.Join(strings.FieldsFunc(normalize.Text(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func reasons(p Profile, rec program.Record, b Breakdown, tuition float64, hasTuition bool, required float64, hasRequired bool) []string {
	var out []string

	if b.Budget != nil && hasTuition {
		switch {
		case *b.Budget >= 100:
			out = append(out, fmt.Sprintf("Within your budget of %s", money(*p.MaxTuition)))
		case *b.Budget >= 70:
			out = append(out, fmt.Sprintf("Slightly over budget (%s)", money(tuition)))
		default:
			out = append(out, fmt.Sprintf("Over budget (%s vs %s budget)", money(tuition), money(*p.MaxTuition)))
		}
	}

	if b.GPA != nil && hasRequired {
		if *b.GPA >= 100 {
			out = append(out, fmt.Sprintf("You meet the GPA requirement (%s)", decimal(required)))
		} else {
			out = append(out, fmt.Sprintf("GPA requirement is %s (yours: %s)", decimal(required), decimal(*p.GPA)))
		}
	}

	switch {
	case b.Field >= 100:
		out = append(out, "Exact field match")
	case b.Field >= 60:
		out = append(out, "Related field of study")
	}

	if p.PreferScholarship && rec.HasScholarship() {
		out = append(out, "Scholarships available")
	}
	return out
}

func money(v float64) string {
	whole := fmt.Sprintf("%.0f", math.Round(v))
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + b.String()
}

func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func ptr(v float64) *float64 {
	return &v
}
