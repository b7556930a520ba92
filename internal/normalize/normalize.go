// Package normalize canonicalizes university names and program fields into
// stable lookup keys.
package normalize

import (
	"strings"
)

// abbreviations maps a normalized short form to its normalized expansion.
// Expansions must never appear as keys, otherwise Name stops being idempotent.
var abbreviations = map[string]string{
	"mit":          "massachusetts institute of technology",
	"ucla":         "university of california los angeles",
	"ucb":          "university of california berkeley",
	"uc berkeley":  "university of california berkeley",
	"ucsd":         "university of california san diego",
	"usc":          "university of southern california",
	"nyu":          "new york university",
	"cmu":          "carnegie mellon university",
	"caltech":      "california institute of technology",
	"gatech":       "georgia institute of technology",
	"georgia tech": "georgia institute of technology",
	"uiuc":         "university of illinois urbana champaign",
	"upenn":        "university of pennsylvania",
	"utoronto":     "university of toronto",
	"uoft":         "university of toronto",
	"ubc":          "university of british columbia",
	"lse":          "london school of economics",
	"ucl":          "university college london",
	"eth":          "eth zurich",
	"epfl":         "ecole polytechnique federale de lausanne",
	"tum":          "technical university of munich",
	"nus":          "national university of singapore",
	"ntu":          "nanyang technological university",
	"kaist":        "korea advanced institute of science and technology",
	"anu":          "australian national university",
	"unsw":         "university of new south wales",
	"buet":         "bangladesh university of engineering and technology",
}

// Name returns the canonical comparison key for a free-text university name:
// lower-cased, trimmed, inner whitespace collapsed and known abbreviations
// expanded. Name(Name(x)) == Name(x) for every x.
func Name(name string) string {
	key := Text(name)
	if expanded, ok := abbreviations[key]; ok {
		return expanded
	}
	return key
}

// Text lower-cases s, trims it and collapses runs of whitespace into a single
// space. It is used for degree and field keys.
func Text(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Expand reports the expansion registered for an abbreviation, if any.
func Expand(abbreviation string) (string, bool) {
	expanded, ok := abbreviations[Text(abbreviation)]
	return expanded, ok
}
