// Package models defines data structures for navrank
package models

import "time"

// Fund identifies one scheme in the fund universe
type Fund struct {
	ID       string `json:"scheme_code"`
	Name     string `json:"scheme_name"`
	Category string `json:"scheme_category"`
	AMC      string `json:"amc,omitempty"`
}

// NAVObservation is a single dated net asset value
type NAVObservation struct {
	Date time.Time `json:"date"`
	NAV  float64   `json:"nav"`
}

// Dataset is the fund universe together with every fetched NAV history,
// keyed by fund ID. Funds without data have no History entry.
type Dataset struct {
	FetchedAt time.Time                   `json:"fetched_at"`
	Funds     []Fund                      `json:"funds"`
	History   map[string][]NAVObservation `json:"history"`
}

// IsEmpty reports whether the dataset has no usable NAV history
func (d *Dataset) IsEmpty() bool {
	if d == nil {
		return true
	}
	for _, obs := range d.History {
		if len(obs) > 0 {
			return false
		}
	}
	return true
}

// Fund returns the universe entry for id
func (d *Dataset) Fund(id string) (Fund, bool) {
	for _, f := range d.Funds {
		if f.ID == id {
			return f, true
		}
	}
	return Fund{}, false
}
