// Package similarity scores how well a record's text matches a requirement
// profile's text on a 0 to 100 scale.
package similarity

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Func computes a similarity in [0, 100] between a profile text and a
// record text.
type Func interface {
	Similarity(ctx context.Context, profileText, recordText string) (float64, error)
}

// Lexical scores texts by token overlap (Sørensen-Dice over word sets). It
// needs no backend and is deterministic.
type Lexical struct{}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "for": {}, "in": {}, "of": {}, "on": {}, "the": {}, "to": {}, "with": {},
}

// Similarity implements Func.
func (Lexical) Similarity(_ context.Context, profileText, recordText string) (float64, error) {
	a := tokens(profileText)
	b := tokens(recordText)
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}
	shared := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			shared++
		}
	}
	return clamp(200 * float64(shared) / float64(len(a)+len(b))), nil
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
