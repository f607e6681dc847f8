package scrape

import (
	"math"
	"strconv"
	"strings"
)

const starGlyph = "★"

// ParseIntOrDefault parses text as a base-10 integer, returning def when it is
// empty or malformed.
func ParseIntOrDefault(text string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return def
	}
	return v
}

// ParseFloatOrDefault parses text as a finite float, returning def otherwise.
func ParseFloatOrDefault(text string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// parseRank applies the rank sentinel to malformed and non-positive ranks.
func parseRank(text string) int {
	rank := ParseIntOrDefault(text, RankSentinel)
	if rank < 1 {
		return RankSentinel
	}
	return rank
}

// StarCount maps a composite rating onto its star bucket. Bucket bounds are
// inclusive lower bounds.
func StarCount(rating float64) int {
	switch {
	case rating >= 0.98:
		return 5
	case rating >= 0.90:
		return 4
	case rating >= 0.80:
		return 3
	case rating >= 0.70:
		return 2
	default:
		return 0
	}
}

// StarGlyphs renders the star count for rating as repeated glyphs.
func StarGlyphs(rating float64) string {
	return strings.Repeat(starGlyph, StarCount(rating))
}

// ParseSchoolLocation splits "School (City, State)". Text without both
// parentheses is returned whole as the school.
func ParseSchoolLocation(text string) (school, city, state string) {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "(") || !strings.Contains(text, ")") {
		return text, "", ""
	}
	head, rest, _ := strings.Cut(text, "(")
	school = strings.TrimSpace(head)
	rest = strings.TrimRight(rest, ")")
	parts := strings.Split(rest, ",")
	if len(parts) > 0 {
		city = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 {
		state = strings.TrimSpace(parts[1])
	}
	return school, city, state
}

// NormalizeRecruits enforces the rank invariants in place before a sink commit.
func NormalizeRecruits(recruits []Recruit) {
	for i := range recruits {
		if recruits[i].NationalRank < 1 {
			recruits[i].NationalRank = RankSentinel
		}
		if recruits[i].PositionRank < 1 {
			recruits[i].PositionRank = RankSentinel
		}
	}
}

// NormalizePortal enforces the rating invariant in place before a sink commit.
func NormalizePortal(entries []PortalEntry) {
	for i := range entries {
		r := entries[i].Rating
		if math.IsNaN(r) || math.IsInf(r, 0) {
			entries[i].Rating = RatingSentinel
		}
	}
}
