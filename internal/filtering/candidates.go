package filtering

import "github.com/smartstudy-abroad/smartstudy/internal/program"

// Candidate is a program under consideration plus notes added by filters.
type Candidate struct {
	Record program.Record
	Notes  []string
}

// Candidates is the working set passed through the filters.
type Candidates struct {
	Items []*Candidate
}

// NewCandidates wraps records into a working set.
func NewCandidates(records []program.Record) *Candidates {
	items := make([]*Candidate, 0, len(records))
	for _, rec := range records {
		items = append(items, &Candidate{Record: rec})
	}
	return &Candidates{Items: items}
}

func (c *Candidates) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// Records returns the remaining records in their current order.
func (c *Candidates) Records() []program.Record {
	out := make([]program.Record, 0, c.Len())
	for _, item := range c.Items {
		out = append(out, item.Record)
	}
	return out
}

// Exclude removes every candidate for which drop returns true, keeping the
// order of the rest, and returns the keys of the removed ones.
func (c *Candidates) Exclude(drop func(*Candidate) bool) []string {
	var excluded []string
	kept := c.Items[:0]
	for _, item := range c.Items {
		if drop(item) {
			excluded = append(excluded, item.Record.Key().String())
			continue
		}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(c.Items); i++ {
		c.Items[i] = nil
	}
	c.Items = kept
	return excluded
}
