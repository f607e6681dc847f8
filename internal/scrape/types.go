// Package scrape implements the paginated listing scraper for recruit rankings
// and transfer portal entries.
package scrape

import (
	"encoding/json"
	"strings"

	"cloud.google.com/go/civil"
)

// Sentinel values substituted when a numeric source field is missing or malformed.
const (
	RankSentinel   = 1000
	RatingSentinel = 0.0
)

// Kind names a listing type.
type Kind string

// Listing kinds.
const (
	KindRecruits Kind = "recruits"
	KindPortal   Kind = "portal"
)

// ParseKind validates a kind name.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindRecruits:
		return KindRecruits, true
	case KindPortal:
		return KindPortal, true
	default:
		return "", false
	}
}

// Recruit is one row of the composite recruit rankings.
type Recruit struct {
	Name         string `json:"name"`
	NationalRank int    `json:"national_rank"`
	PositionRank int    `json:"position_rank"`
	Position     string `json:"position"`
	HighSchool   string `json:"high_school"`
	City         string `json:"city"`
	State        string `json:"state"`
	Commit       string `json:"commit"`
}

// PortalEntry is one transfer portal listing. Every field participates in the
// dedup key; stars are derived from Rating and never stored.
type PortalEntry struct {
	Name       string     `json:"name"`
	FromSchool string     `json:"from_school"`
	ToSchool   string     `json:"to_school"`
	Position   string     `json:"position"`
	Rating     float64    `json:"rating"`
	Status     string     `json:"status"`
	UpdateDate civil.Date `json:"update_date"`
}

// Stars returns the star count for the entry's rating.
func (e PortalEntry) Stars() int {
	return StarCount(e.Rating)
}

// MarshalJSON adds the derived star count to the encoded entry.
func (e PortalEntry) MarshalJSON() ([]byte, error) {
	type entry PortalEntry
	return json.Marshal(struct {
		entry
		Stars int `json:"stars"`
	}{entry(e), e.Stars()})
}

// Page is the parsed outcome of one listing page.
type Page[T any] struct {
	Number  int
	Records []T
	// Items counts listing nodes on the page, including ones the parser skipped.
	Items int
	// Stale reports that the page reached listings older than the staleness cutoff.
	Stale bool
}
