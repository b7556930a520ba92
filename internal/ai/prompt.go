package ai

import (
	_ "embed"
	"strings"

	"github.com/smartstudy-abroad/smartstudy/internal/program"
)

var (
	//go:embed prompts/fetch_all.md
	fetchAllTemplate string
	//go:embed prompts/question.md
	questionTemplate string
	//go:embed prompts/program_system.md
	programSystemInstruction string
	//go:embed prompts/chat_system.md
	chatSystemInstruction string
)

var questionInstructions = map[program.QueryType]string{
	program.QueryTuition:      "Return ONLY the tuition fee amount (e.g. '$61,990 per year' or 'BDT 500,000 per semester').",
	program.QueryAdmission:    "Return ONLY a short list of requirements (e.g. 'CGPA 3.0+, IELTS 6.5, LOR x2').",
	program.QueryDeadlines:    "Return ONLY the fall deadline date (e.g. 'January 15, 2026' or 'Rolling admissions').",
	program.QueryScholarships: "Return ONLY scholarship names and amounts (e.g. 'Merit: 50% tuition, Need-based: $10,000').",
	program.QueryEnglish:      "Return ONLY the score requirements (e.g. 'IELTS 6.5 / TOEFL 90').",
	program.QueryTests:        "Return ONLY the test scores (e.g. 'GRE 310+ / GMAT 600+').",
	program.QueryGPA:          "Return ONLY the minimum GPA (e.g. '3.0 / 4.0').",
	program.QueryDuration:     "Return ONLY the duration (e.g. '2 years' or '4 semesters').",
	program.QueryRanking:      "Return ONLY the ranking (e.g. '#5 in US, #20 World').",
	program.QueryCareer:       "Return ONLY key stats (e.g. '95% placement, Avg salary $120k').",
	program.QueryGeneral:      "Return ONLY the key fact requested in one short line.",
}

// ProgramSystemInstruction is the system instruction for program data prompts.
func ProgramSystemInstruction() string {
	return strings.TrimSpace(programSystemInstruction)
}

// ChatSystemInstruction is the system instruction for the chat assistant.
func ChatSystemInstruction() string {
	return strings.TrimSpace(chatSystemInstruction)
}

// BuildFetchAllPrompt asks for every key data point of a program.
func BuildFetchAllPrompt(university string, degree program.Degree, field string) string {
	return fill(fetchAllTemplate, map[string]string{
		"{{UNIVERSITY}}": university,
		"{{DEGREE}}":     string(degree),
		"{{FIELD}}":      field,
	})
}

// BuildQuestionPrompt asks for the single data point a question is about.
func BuildQuestionPrompt(university string, degree program.Degree, field, question string, kind program.QueryType) string {
	instruction, ok := questionInstructions[kind]
	if !ok {
		instruction = questionInstructions[program.QueryGeneral]
	}
	if strings.TrimSpace(question) == "" {
		question = strings.ReplaceAll(string(kind), "_", " ")
	}
	return fill(questionTemplate, map[string]string{
		"{{UNIVERSITY}}":  university,
		"{{DEGREE}}":      string(degree),
		"{{FIELD}}":       field,
		"{{QUESTION}}":    question,
		"{{INSTRUCTION}}": instruction,
	})
}

const maxInputRunes = 400

var bracketReplacer = strings.NewReplacer("[", "(", "]", ")", "{", "(", "}", ")")

// sanitizeLine folds user input onto one line, defuses bracketed markers such
// as "[System]" or "{{FIELD}}" and caps the length.
func sanitizeLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = bracketReplacer.Replace(s)
	if runes := []rune(s); len(runes) > maxInputRunes {
		s = strings.TrimSpace(string(runes[:maxInputRunes]))
	}
	return s
}

func fill(template string, values map[string]string) string {
	out := template
	for placeholder, value := range values {
		out = strings.ReplaceAll(out, placeholder, sanitizeLine(value))
	}
	return strings.TrimSpace(out)
}
