package program

import (
	"regexp"
	"strconv"
	"strings"
)

// Attribute names, also used as JSON keys in API responses.
const (
	AttrTuition        = "tuition_fees"
	AttrGPA            = "gpa_requirement"
	AttrEnglish        = "english_requirements"
	AttrTests          = "test_requirements"
	AttrScholarships   = "scholarships"
	AttrDeadlineSpring = "deadline_spring"
	AttrDeadlineSummer = "deadline_summer"
	AttrDeadlineFall   = "deadline_fall"
	AttrDuration       = "program_duration"
	AttrCountry        = "country"
)

// FetchAllAttributes lists the data points a fetch-all answer must provide for
// a stored record to be served without asking the model again. Spring and
// summer intakes are optional since many programs only admit in the fall.
var FetchAllAttributes = []string{
	AttrTuition,
	AttrDeadlineFall,
	AttrEnglish,
	AttrGPA,
	AttrTests,
	AttrScholarships,
	AttrDuration,
}

var (
	amountRe  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	kSuffixRe = regexp.MustCompile(`(?i)^\s*\$?\s*(\d+(?:\.\d+)?)\s*k\b`)
	gpaRe     = regexp.MustCompile(`\d+(?:\.\d+)?`)
	toeflRe   = regexp.MustCompile(`(?i)TOEFL(?:\s*iBT)?\s*:?\s*(\d+(?:\.\d+)?)`)
	ieltsRe   = regexp.MustCompile(`(?i)IELTS\s*:?\s*(\d+(?:\.\d+)?)`)
)

// ParseAmount extracts the first monetary amount from strings like
// "$61,990 per year", "61990", "USD 45,000/year" or "$55k". It returns false
// when no amount is present.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if m := kSuffixRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return v * 1000, true
	}

	match := amountRe.FindString(s)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseGPA extracts a GPA on the 4.0 scale from strings like "3.5+",
// "CGPA 3.0 / 4.0" or "3.7 minimum". Values above 4 are rejected since the
// scale is unknown.
func ParseGPA(s string) (float64, bool) {
	match := gpaRe.FindString(s)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || v < 0 || v > 4 {
		return 0, false
	}
	return v, true
}

// EnglishTest is a supported English proficiency test.
type EnglishTest string

const (
	TOEFL EnglishTest = "TOEFL"
	IELTS EnglishTest = "IELTS"
)

// ParseEnglishTest accepts case-insensitive test names.
func ParseEnglishTest(s string) (EnglishTest, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(TOEFL):
		return TOEFL, true
	case string(IELTS):
		return IELTS, true
	}
	return "", false
}

// EnglishScores holds minimum scores per test; zero means not required or
// unknown.
type EnglishScores struct {
	TOEFL float64
	IELTS float64
}

// Minimum returns the minimum score for the given test.
func (e EnglishScores) Minimum(test EnglishTest) (float64, bool) {
	switch test {
	case TOEFL:
		return e.TOEFL, e.TOEFL > 0
	case IELTS:
		return e.IELTS, e.IELTS > 0
	}
	return 0, false
}

// ParseEnglish parses strings like "TOEFL 100 / IELTS 7.0".
func ParseEnglish(s string) EnglishScores {
	var scores EnglishScores
	if m := toeflRe.FindStringSubmatch(s); m != nil {
		scores.TOEFL, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := ieltsRe.FindStringSubmatch(s); m != nil {
		scores.IELTS, _ = strconv.ParseFloat(m[1], 64)
	}
	return scores
}
