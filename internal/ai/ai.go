// Package ai holds the provider-neutral contracts for text generation and
// embeddings, and the prompts and answer parsing for program data.
package ai

import "context"

// Generator produces a text answer for a message under a system instruction.
type Generator interface {
	GenerateContent(ctx context.Context, systemInstruction, message string) (string, error)
	Model() string
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// ProgramAnswer is the parsed model answer about one program.
type ProgramAnswer struct {
	// OfficialName is the university name as the model spelled it, if any.
	OfficialName string
	// Attributes holds data points keyed by program attribute name.
	Attributes map[string]string
	// Descriptive is the free-text answer shown to the user.
	Descriptive string
	Raw         string
}
