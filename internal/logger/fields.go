package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured log keys shared across packages.
const (
	FieldProvider   = "ai_provider"
	FieldModel      = "ai_model"
	FieldUniversity = "university"
	FieldDegree     = "degree"
	FieldField      = "field"
	FieldQueryType  = "query_type"
)

// Pairs turns alternating key/value strings into zap string fields. Both sides
// are trimmed; pairs with an empty key or value are skipped, as is a trailing
// key without a value.
func Pairs(kv ...string) []zap.Field {
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, value := strings.TrimSpace(kv[i]), strings.TrimSpace(kv[i+1])
		if key == "" || value == "" {
			continue
		}
		out = append(out, zap.String(key, value))
	}
	return out
}

// WithFields attaches fields to logger. A nil logger becomes a no-op one.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// CommonFields names the AI provider and model behind a call.
func CommonFields(provider, model string) []zap.Field {
	return Pairs(FieldProvider, provider, FieldModel, model)
}

func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// ProgramFields identifies the program a request is about.
func ProgramFields(university, degree, field string) []zap.Field {
	return Pairs(FieldUniversity, university, FieldDegree, degree, FieldField, field)
}

func WithProgram(logger *zap.Logger, university, degree, field string) *zap.Logger {
	return WithFields(logger, ProgramFields(university, degree, field)...)
}
