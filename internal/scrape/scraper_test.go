package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://247sports.test"

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]error
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (Node, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	body, err := f.pages[url], f.fail[url]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if body == "" {
		body = "<html><body></body></html>"
	}
	return ParseDocument([]byte(body))
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testConfig() Config {
	return Config{
		BaseURL:              testBase + "/",
		Season:               2026,
		BatchSize:            2,
		MaxWorkers:           2,
		MinEntriesToContinue: 2,
		StaleAfterDays:       365,
	}
}

func recruitItem(name, nat, pos, meta, commit string) string {
	var b strings.Builder
	b.WriteString(`<li>`)
	if name != "" {
		fmt.Fprintf(&b, `<a class="rankings-page__name-link" href="#">%s</a>`, name)
	}
	fmt.Fprintf(&b, `<span class="meta"> %s </span>`, meta)
	b.WriteString(`<div class="position"> WR </div>`)
	fmt.Fprintf(&b, `<div class="rank"><a class="natrank">%s</a><a class="posrank">%s</a></div>`, nat, pos)
	if commit != "" {
		fmt.Fprintf(&b, `<div class="status"><a class="img-link"><img class="jsonly" title="%s"></a></div>`, commit)
	}
	b.WriteString(`</li>`)
	return b.String()
}

func recruitPage(items ...string) string {
	return `<html><body><ul class="rankings-page__list">` + strings.Join(items, "") + `</ul></body></html>`
}

func TestParseRecruitPage(t *testing.T) {
	t.Parallel()

	html := recruitPage(
		recruitItem("Player", "", "", "", ""),
		recruitItem("Jane Doe", "12", "3", "Mater Dei (Santa Ana, CA)", "San Diego State"),
		recruitItem("John Roe", "NR", "0", "Helix", ""),
		recruitItem("", "5", "5", "", ""),
	)
	doc, err := ParseDocument([]byte(html))
	require.NoError(t, err)

	page := ParseRecruitPage(doc)
	assert.Equal(t, 4, page.Items)
	require.Len(t, page.Records, 2)
	assert.Equal(t, Recruit{
		Name:         "Jane Doe",
		NationalRank: 12,
		PositionRank: 3,
		Position:     "WR",
		HighSchool:   "Mater Dei",
		City:         "Santa Ana",
		State:        "CA",
		Commit:       "San Diego State",
	}, page.Records[0])
	assert.Equal(t, Recruit{
		Name:         "John Roe",
		NationalRank: RankSentinel,
		PositionRank: RankSentinel,
		Position:     "WR",
		HighSchool:   "Helix",
	}, page.Records[1])
}

func recruitPageOf(start, n int) string {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, recruitItem(fmt.Sprintf("Recruit %d", start+i), fmt.Sprint(start+i), "1", "School (City, ST)", ""))
	}
	return recruitPage(items...)
}

func TestScrapeRecruits(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	s := New(testConfig(), f, nil, nil)
	f.pages[s.RecruitsURL(1)] = recruitPageOf(1, 3)
	f.pages[s.RecruitsURL(2)] = recruitPageOf(4, 3)
	f.pages[s.RecruitsURL(3)] = recruitPageOf(7, 3)
	f.pages[s.RecruitsURL(4)] = recruitPageOf(10, 3)
	// The short last page repeats a page 1 recruit, which must not be duplicated.
	f.pages[s.RecruitsURL(5)] = recruitPage(
		recruitItem("Recruit 13", "13", "1", "School (City, ST)", ""),
		recruitItem("Recruit 1", "1", "1", "School (City, ST)", ""),
	)

	recs, err := s.ScrapeRecruits(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 13)
	assert.Equal(t, "Recruit 1", recs[0].Name)
	assert.Equal(t, "Recruit 13", recs[12].Name)
	// Page 1 alone, then batches [2,3], [4,5].
	assert.Equal(t, 5, f.callCount())
}

func TestScrapeRecruitsEmptyFirstPage(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	s := New(testConfig(), f, nil, nil)
	recs, err := s.ScrapeRecruits(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 1, f.callCount())
}

func TestScrapeRecruitsFetchError(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	s := New(testConfig(), f, nil, nil)
	f.pages[s.RecruitsURL(1)] = recruitPageOf(1, 3)
	f.pages[s.RecruitsURL(2)] = recruitPageOf(4, 3)
	boom := errors.New("connection reset")
	f.fail[s.RecruitsURL(3)] = boom

	recs, err := s.ScrapeRecruits(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Nil(t, recs)
}

func TestURLs(t *testing.T) {
	t.Parallel()

	s := New(testConfig(), newFakeFetcher(), nil, nil)
	assert.Equal(t, testBase+"/Season/2026-Football/CompositeRecruitRankings/?Page=3", s.RecruitsURL(3))
	assert.Equal(t, testBase+"/Season/2026-Football/TransferPortal/?Page=1", s.PortalURL(1))
}

type portalPlayer struct {
	name, from, to, pos, rating, status string
}

func portalGroup(header string, players ...portalPlayer) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<section class="transfer-group"><header class="transferContentHeader"><h2>%s</h2></header><ul>`, header)
	for _, p := range players {
		fmt.Fprintf(&b, `<li class="transfer-player"><h3><a href="#">%s</a></h3>`, p.name)
		fmt.Fprintf(&b, `<div class="position">%s</div><div class="rating">%s</div><div class="status">%s</div>`, p.pos, p.rating, p.status)
		if p.from != "" {
			fmt.Fprintf(&b, `<img class="logo" alt="%s">`, p.from)
		}
		if p.to != "" {
			fmt.Fprintf(&b, `<img class="logo" alt="%s">`, p.to)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></section>`)
	return b.String()
}

func portalPage(groups ...string) string {
	return `<html><body>` + strings.Join(groups, "") + `</body></html>`
}

func TestParsePortalPage(t *testing.T) {
	t.Parallel()

	today := civil.Date{Year: 2026, Month: 10, Day: 19}
	cutoff := today.AddDays(-365)
	html := portalPage(
		portalGroup("10/18/26 Entries",
			portalPlayer{"A One", "Oregon", "San Diego State", "QB", "0.9123", "Committed"},
			portalPlayer{"B Two", " Utah ", "", "CB", "", "Entered"},
		),
		portalGroup("Today's Moves", portalPlayer{"C Three", "UCLA", "USC", "WR", "bad", "Enrolled"}),
		portalGroup("01/01/24", portalPlayer{"D Old", "X", "Y", "RB", "0.8", "Committed"}),
		portalGroup("10/01/26", portalPlayer{"E Unreached", "X", "Y", "RB", "0.8", "Committed"}),
	)
	doc, err := ParseDocument([]byte(html))
	require.NoError(t, err)

	page := ParsePortalPage(doc, today, cutoff)
	assert.True(t, page.Stale)
	require.Len(t, page.Records, 3)
	assert.Equal(t, PortalEntry{
		Name:       "A One",
		FromSchool: "Oregon",
		ToSchool:   "San Diego State",
		Position:   "QB",
		Rating:     0.9123,
		Status:     "Committed",
		UpdateDate: civil.Date{Year: 2026, Month: 10, Day: 18},
	}, page.Records[0])
	assert.Equal(t, "Utah", page.Records[1].FromSchool)
	assert.Equal(t, "", page.Records[1].ToSchool)
	assert.InDelta(t, RatingSentinel, page.Records[1].Rating, 1e-9)
	assert.Equal(t, today, page.Records[2].UpdateDate)
}

func TestParsePortalPageUnpaddedDates(t *testing.T) {
	t.Parallel()

	today := civil.Date{Year: 2026, Month: 10, Day: 19}
	cutoff := today.AddDays(-365)

	doc, err := ParseDocument([]byte(portalPage(
		portalGroup("3/7/26 Entries", portalPlayer{"A One", "Oregon", "Utah", "QB", "0.9", "Committed"}),
		portalGroup("1/5/24 Entries", portalPlayer{"B Old", "X", "Y", "RB", "0.8", "Committed"}),
	)))
	require.NoError(t, err)

	page := ParsePortalPage(doc, today, cutoff)
	assert.True(t, page.Stale)
	require.Len(t, page.Records, 1)
	assert.Equal(t, civil.Date{Year: 2026, Month: 3, Day: 7}, page.Records[0].UpdateDate)

	doc, err = ParseDocument([]byte(portalPage(
		portalGroup("1/5/24 Entries", portalPlayer{"B Old", "X", "Y", "RB", "0.8", "Committed"}),
	)))
	require.NoError(t, err)
	page = ParsePortalPage(doc, today, cutoff)
	assert.True(t, page.Stale)
	assert.Empty(t, page.Records)
}

func portalPageOf(date string, start, n int) string {
	players := make([]portalPlayer, 0, n)
	for i := 0; i < n; i++ {
		players = append(players, portalPlayer{fmt.Sprintf("Player %d", start+i), "A", "B", "LB", "0.85", "Committed"})
	}
	return portalPage(portalGroup(date, players...))
}

func TestScrapePortalStopsOnShortPage(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	clk := fixedClock{t: time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)}
	s := New(testConfig(), f, clk, nil)
	f.pages[s.PortalURL(1)] = portalPageOf("10/19/26", 1, 3)
	f.pages[s.PortalURL(2)] = portalPageOf("10/18/26", 4, 3)
	f.pages[s.PortalURL(3)] = portalPageOf("10/17/26", 7, 1)
	f.pages[s.PortalURL(4)] = portalPageOf("10/16/26", 8, 3)

	entries, err := s.ScrapePortal(context.Background())
	require.NoError(t, err)
	// Page 3 is short, so batch [3,4] is the last one and page 4 still merges.
	assert.Len(t, entries, 10)
	assert.Equal(t, 4, f.callCount())
}

func TestScrapePortalStopsOnStaleGroup(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	clk := fixedClock{t: time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)}
	cfg := testConfig()
	cfg.BatchSize = 1
	s := New(cfg, f, clk, nil)
	f.pages[s.PortalURL(1)] = portalPageOf("10/19/26", 1, 3)
	f.pages[s.PortalURL(2)] = portalPage(
		portalGroup("03/02/26", portalPlayer{"Fresh", "A", "B", "S", "0.9", "Entered"},
			portalPlayer{"Fresh Two", "A", "B", "S", "0.9", "Entered"}),
		portalGroup("03/02/25", portalPlayer{"Stale", "A", "B", "S", "0.9", "Entered"}),
	)
	f.pages[s.PortalURL(3)] = portalPageOf("10/19/26", 100, 3)

	entries, err := s.ScrapePortal(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Equal(t, 2, f.callCount())
}

func TestScrapePortalFetchError(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	s := New(testConfig(), f, fixedClock{t: time.Now()}, nil)
	boom := errors.New("503")
	f.fail[s.PortalURL(2)] = boom

	_, err := s.ScrapePortal(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"base url", func(c *Config) { c.BaseURL = "" }, "scrape.base_url"},
		{"season", func(c *Config) { c.Season = 0 }, "scrape.season"},
		{"batch", func(c *Config) { c.BatchSize = 0 }, "scrape.batch_size"},
		{"workers", func(c *Config) { c.MaxWorkers = -1 }, "scrape.max_workers"},
		{"max pages", func(c *Config) { c.MaxPages = -1 }, "scrape.max_pages"},
		{"min entries", func(c *Config) { c.MinEntriesToContinue = -1 }, "scrape.min_entries_to_continue"},
		{"stale", func(c *Config) { c.StaleAfterDays = 0 }, "scrape.stale_after_days"},
	}
	for _, tt := range tests {
		cfg := testConfig()
		tt.mutate(&cfg)
		err := cfg.Validate()
		require.Error(t, err, tt.name)
		assert.Contains(t, err.Error(), tt.want)
	}
}
