package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/smartstudy-abroad/smartstudy/internal/program"
)

// ErrNoAnswer is returned when a model answer carries no usable data.
var ErrNoAnswer = errors.New("model answer has no usable data")

const (
	keyDataOpen       = "[KEY_DATA]"
	keyDataClose      = "[/KEY_DATA]"
	fieldOfficialName = "official_name"
)

// Labels are matched by prefix, so longer labels sharing a prefix come first.
var keyDataLabels = []struct {
	label string
	attr  string
}{
	{"UNIVERSITY_NAME", fieldOfficialName},
	{"COUNTRY", program.AttrCountry},
	{"TUITION", program.AttrTuition},
	{"DEADLINE_SPRING", program.AttrDeadlineSpring},
	{"DEADLINE_SUMMER", program.AttrDeadlineSummer},
	{"DEADLINE_FALL", program.AttrDeadlineFall},
	{"ENGLISH", program.AttrEnglish},
	{"GPA", program.AttrGPA},
	{"GRE_GMAT", program.AttrTests},
	{"GRE", program.AttrTests},
	{"GMAT", program.AttrTests},
	{"SCHOLARSHIP", program.AttrScholarships},
	{"DURATION", program.AttrDuration},
}

var jsonKeys = map[string]string{
	"university_name":          fieldOfficialName,
	"official_name":            fieldOfficialName,
	program.AttrCountry:        program.AttrCountry,
	program.AttrTuition:        program.AttrTuition,
	program.AttrDeadlineSpring: program.AttrDeadlineSpring,
	program.AttrDeadlineSummer: program.AttrDeadlineSummer,
	program.AttrDeadlineFall:   program.AttrDeadlineFall,
	program.AttrEnglish:        program.AttrEnglish,
	program.AttrGPA:            program.AttrGPA,
	program.AttrTests:          program.AttrTests,
	program.AttrScholarships:   program.AttrScholarships,
	program.AttrDuration:       program.AttrDuration,
}

var emptyValues = map[string]struct{}{
	"n/a": {}, "na": {}, "not available": {}, "none": {}, "-": {}, "unknown": {}, "": {},
}

var notFoundPhrases = []string{
	"not found", "not available", "couldn't find", "could not find",
	"no information", "unable to find", "don't have", "do not have",
	"not specified", "not provided", "n/a", "unknown",
}

var (
	markdownRe = regexp.MustCompile(`\*\*|\*|__|\[|\]`)
	bulletRe   = regexp.MustCompile(`^[-•]\s*`)
)

var skippedPrefixes = []string{"here", "the ", "based on", "according", "i found", "i couldn"}

// ParseFetchAll parses a fetch-all answer. The KEY_DATA block is preferred,
// a JSON object is accepted as well. Values marked as unavailable are
// skipped. ErrNoAnswer is returned when no data point could be read.
func ParseFetchAll(raw string) (*ProgramAnswer, error) {
	answer := &ProgramAnswer{Attributes: map[string]string{}, Raw: raw}

	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrNoAnswer
	}

	if start := strings.Index(text, keyDataOpen); start != -1 {
		answer.Descriptive = strings.TrimSpace(text[:start])
		section := text[start+len(keyDataOpen):]
		if end := strings.Index(section, keyDataClose); end != -1 {
			section = section[:end]
		}
		parseKeyData(section, answer)
	} else if data, ok := parseJSONObject(text); ok {
		for key, value := range data {
			attr, known := jsonKeys[strings.ToLower(strings.TrimSpace(key))]
			if !known {
				if strings.EqualFold(key, "answer") || strings.EqualFold(key, "descriptive") {
					answer.Descriptive = coerceString(value)
				}
				continue
			}
			assign(answer, attr, coerceString(value))
		}
	} else {
		answer.Descriptive = text
		parseKeyData(text, answer)
	}

	if len(answer.Attributes) == 0 {
		return nil, fmt.Errorf("parse fetch-all answer: %w", ErrNoAnswer)
	}
	return answer, nil
}

// ParseQuestion extracts the single key value of a one-question answer.
// Answers that say the data could not be found are rejected with ErrNoAnswer.
func ParseQuestion(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrNoAnswer
	}

	lower := strings.ToLower(text)
	for _, phrase := range notFoundPhrases {
		if strings.Contains(lower, phrase) {
			return "", fmt.Errorf("answer says %q: %w", phrase, ErrNoAnswer)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			continue
		}
		if hasSkippedPrefix(strings.ToLower(line)) {
			continue
		}
		line = cleanValue(bulletRe.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"'`)
		if line != "" && len(line) < 200 {
			return line, nil
		}
	}

	if runes := []rune(text); len(runes) > 150 {
		text = string(runes[:150])
	}
	if text = strings.TrimSpace(text); len(text) > 10 {
		return text, nil
	}
	return "", ErrNoAnswer
}

func parseKeyData(section string, answer *ProgramAnswer) {
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(strings.TrimLeft(line, "-*• "))
		for _, l := range keyDataLabels {
			if !strings.HasPrefix(upper, l.label) {
				continue
			}
			if _, value, found := strings.Cut(line, ":"); found {
				assign(answer, l.attr, value)
			}
			break
		}
	}
}

func assign(answer *ProgramAnswer, attr, value string) {
	value = cleanValue(value)
	if _, empty := emptyValues[strings.ToLower(value)]; empty {
		return
	}
	if attr == fieldOfficialName {
		answer.OfficialName = value
		return
	}
	if _, exists := answer.Attributes[attr]; exists {
		return
	}
	answer.Attributes[attr] = value
}

func cleanValue(value string) string {
	value = markdownRe.ReplaceAllString(value, "")
	return strings.TrimSpace(value)
}

func hasSkippedPrefix(line string) bool {
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func parseJSONObject(raw string) (map[string]any, bool) {
	cleaned := extractJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, false
	}
	return data, true
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
