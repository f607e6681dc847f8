package sheets

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

// Worksheet column headers.
var (
	RecruitHeader = []any{"Name", "National Rank", "Position Rank", "Position", "High School", "City", "State", "Commit"}
	PortalHeader  = []any{"Name", "From School", "To School", "Position", "Rating", "Status", "Update Date", "Stars"}
)

// ratingColumn is the portal column holding the rating the stars formula reads.
const ratingColumn = "E"

// BioLink renders the name cell as a HYPERLINK formula to the bio endpoint.
// With no base URL the plain name is returned.
func BioLink(base, name, school string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return name
	}
	target := fmt.Sprintf("%s/bio?name=%s&school=%s", base, url.QueryEscape(name), url.QueryEscape(school))
	return fmt.Sprintf(`=HYPERLINK("%s","%s")`, quoteFormula(target), quoteFormula(name))
}

// StarsFormula computes the star glyphs from the rating cell of sheet row n.
func StarsFormula(row int) string {
	cell := fmt.Sprintf("%s%d", ratingColumn, row)
	return fmt.Sprintf(`=REPT("★",IFS(%[1]s>=0.98,5,%[1]s>=0.90,4,%[1]s>=0.80,3,%[1]s>=0.70,2,TRUE,0))`, cell)
}

// RecruitRows builds the header and one row per recruit.
func RecruitRows(base string, recruits []scrape.Recruit) [][]any {
	rows := make([][]any, 0, len(recruits)+1)
	rows = append(rows, RecruitHeader)
	for _, r := range recruits {
		rows = append(rows, []any{
			BioLink(base, r.Name, r.HighSchool),
			r.NationalRank,
			r.PositionRank,
			r.Position,
			r.HighSchool,
			r.City,
			r.State,
			r.Commit,
		})
	}
	return rows
}

// PortalRows builds the header and one row per portal entry. Stars are either
// a live formula over the rating cell or precomputed glyphs.
func PortalRows(base string, entries []scrape.PortalEntry, starsFormula bool) [][]any {
	rows := make([][]any, 0, len(entries)+1)
	rows = append(rows, PortalHeader)
	for i, e := range entries {
		stars := scrape.StarGlyphs(e.Rating)
		if starsFormula {
			// Data starts on sheet row 2, below the header.
			stars = StarsFormula(i + 2)
		}
		rows = append(rows, []any{
			BioLink(base, e.Name, e.FromSchool),
			e.FromSchool,
			e.ToSchool,
			e.Position,
			e.Rating,
			e.Status,
			e.UpdateDate.String(),
			stars,
		})
	}
	return rows
}

func quoteFormula(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}
