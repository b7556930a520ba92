package program

import "strings"

// QueryType classifies a free-text question about a program.
type QueryType string

const (
	QueryTuition      QueryType = "tuition_fees"
	QueryAdmission    QueryType = "admission_requirements"
	QueryDeadlines    QueryType = "deadlines"
	QueryScholarships QueryType = "scholarships"
	QueryEnglish      QueryType = "english_requirements"
	QueryTests        QueryType = "test_requirements"
	QueryGPA          QueryType = "gpa_requirement"
	QueryDuration     QueryType = "program_duration"
	QueryRanking      QueryType = "ranking"
	QueryCareer       QueryType = "career_prospects"
	QueryGeneral      QueryType = "general_info"
)

type queryRule struct {
	kind     QueryType
	keywords []string
}

// Rules are checked in order. Specific tests come before the generic
// "requirement" keyword so "english requirement" is not read as admission.
var queryRules = []queryRule{
	{QueryTuition, []string{"tuition", "fee", "cost", "price"}},
	{QueryEnglish, []string{"ielts", "toefl", "english", "language"}},
	{QueryTests, []string{"gre", "gmat"}},
	{QueryGPA, []string{"gpa", "grade"}},
	{QueryDeadlines, []string{"deadline", "apply", "intake"}},
	{QueryScholarships, []string{"scholarship", "financial", "funding"}},
	{QueryAdmission, []string{"admission", "requirement", "eligibility"}},
	{QueryDuration, []string{"duration", "how long", "year"}},
	{QueryRanking, []string{"rank"}},
	{QueryCareer, []string{"career", "job", "placement", "salary"}},
}

// DetectQueryType maps a question to the kind of data point it asks for.
// Keywords match whole words or word prefixes.
func DetectQueryType(question string) QueryType {
	q := strings.ToLower(question)
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, rule := range queryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(q, kw) {
					return rule.kind
				}
				continue
			}
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					return rule.kind
				}
			}
		}
	}
	return QueryGeneral
}

// Attributes lists the stored data points that answer the query type. An
// empty result means the question needs a descriptive answer.
func (q QueryType) Attributes() []string {
	switch q {
	case QueryTuition:
		return []string{AttrTuition}
	case QueryEnglish:
		return []string{AttrEnglish}
	case QueryTests:
		return []string{AttrTests}
	case QueryGPA:
		return []string{AttrGPA}
	case QueryDeadlines:
		return []string{AttrDeadlineFall}
	case QueryScholarships:
		return []string{AttrScholarships}
	case QueryAdmission:
		return []string{AttrGPA, AttrEnglish}
	case QueryDuration:
		return []string{AttrDuration}
	}
	return nil
}

// Answers reports whether rec already holds every data point the query type
// asks for.
func (r Record) Answers(q QueryType) bool {
	needed := q.Attributes()
	if len(needed) == 0 {
		return false
	}
	attrs := r.Attributes()
	for _, attr := range needed {
		if _, ok := attrs[attr]; !ok {
			return false
		}
	}
	return true
}
