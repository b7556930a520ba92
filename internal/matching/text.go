package matching

import (
	"strings"

	"github.com/smartstudy-abroad/smartstudy/internal/program"
)

// ProfileText describes what the user is looking for, in the same
// vocabulary RecordText uses, for the similarity capability.
func ProfileText(p Profile) string {
	parts := []string{p.Field}
	if p.Degree != "" {
		parts = append(parts, string(p.Degree), degreeKeywords(p.Degree))
	}
	if c := strings.TrimSpace(p.Country); c != "" && !strings.EqualFold(c, "any") {
		parts = append(parts, "in "+c)
	}
	if p.MaxTuition != nil {
		switch {
		case *p.MaxTuition < 15000:
			parts = append(parts, "affordable low cost")
		case *p.MaxTuition < 30000:
			parts = append(parts, "moderate cost")
		default:
			parts = append(parts, "any cost premium")
		}
	}
	if p.GPA != nil {
		switch {
		case *p.GPA >= 3.5:
			parts = append(parts, "competitive high requirements")
		case *p.GPA >= 3.0:
			parts = append(parts, "moderate requirements")
		default:
			parts = append(parts, "accessible requirements")
		}
	}
	if p.PreferScholarship {
		parts = append(parts, "scholarships available financial aid funding")
	}
	return join(parts)
}

// RecordText describes a program for the similarity capability.
func RecordText(r program.Record) string {
	parts := []string{r.University}
	if r.Country != "" {
		parts = append(parts, "in "+r.Country)
	}
	if r.Degree != "" {
		parts = append(parts, string(r.Degree), degreeKeywords(r.Degree))
	}
	parts = append(parts, r.Field, fieldKeywords(r.Field))

	if tuition, ok := r.Tuition(); ok {
		switch {
		case tuition < 15000:
			parts = append(parts, "affordable low cost budget friendly")
		case tuition < 30000:
			parts = append(parts, "moderate cost mid-range")
		case tuition < 50000:
			parts = append(parts, "expensive high cost premium")
		default:
			parts = append(parts, "very expensive elite premium")
		}
	}
	if gpa, ok := r.GPA(); ok {
		switch {
		case gpa >= 3.7:
			parts = append(parts, "highly competitive selective elite")
		case gpa >= 3.5:
			parts = append(parts, "competitive high requirements")
		case gpa >= 3.0:
			parts = append(parts, "moderate requirements accessible")
		default:
			parts = append(parts, "accessible requirements")
		}
	}
	if r.HasScholarship() {
		parts = append(parts, "scholarships available financial aid funding")
	}
	return join(parts)
}

func degreeKeywords(d program.Degree) string {
	switch d {
	case program.DegreeMaster:
		return "masters graduate program MS MSc"
	case program.DegreePhD:
		return "doctoral research PhD"
	case program.DegreeBachelor:
		return "undergraduate BS BSc"
	}
	return ""
}

func fieldKeywords(field string) string {
	f := strings.ToLower(field)
	switch {
	case strings.Contains(f, "computer"):
		return "software engineering programming technology"
	case strings.Contains(f, "business") || strings.Contains(f, "mba"):
		return "management finance marketing administration"
	case strings.Contains(f, "data"):
		return "analytics machine learning statistics"
	case strings.Contains(f, "engineer"):
		return "technical STEM technology"
	}
	return ""
}

func join(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
