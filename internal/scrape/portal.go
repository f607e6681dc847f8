package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/metrics"
)

const (
	portalGroupSelector   = "section.transfer-group"
	portalHeaderSelector  = "header.transferContentHeader h2"
	portalItemSelector    = "li.transfer-player"
	portalNameSelector    = "h3 a"
	portalPosSelector     = "div.position"
	portalRatingSelector  = "div.rating"
	portalStatusSelector  = "div.status"
	portalLogoSelector    = "img.logo"
	portalGroupDateLayout = "1/2/06"
)

// ParsePortalPage extracts portal entries grouped under dated headers. A group
// without a parsable date is dated today. Parsing stops at the first group
// dated before cutoff and the page is marked stale.
func ParsePortalPage(doc Node, today, cutoff civil.Date) Page[PortalEntry] {
	var page Page[PortalEntry]
	for _, grp := range doc.FindAll(portalGroupSelector) {
		date := parseGroupDate(textOf(grp, portalHeaderSelector), today)
		if date.Before(cutoff) {
			page.Stale = true
			break
		}
		for _, li := range grp.FindAll(portalItemSelector) {
			page.Items++
			page.Records = append(page.Records, parsePortalEntry(li, date))
		}
	}
	return page
}

func parseGroupDate(header string, today civil.Date) civil.Date {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return today
	}
	t, err := time.Parse(portalGroupDateLayout, fields[0])
	if err != nil {
		return today
	}
	return civil.DateOf(t)
}

func parsePortalEntry(li Node, date civil.Date) PortalEntry {
	logos := li.FindAll(portalLogoSelector)
	from, to := "", ""
	if len(logos) >= 1 {
		from, _ = logos[0].Attr("alt")
	}
	if len(logos) >= 2 {
		to, _ = logos[1].Attr("alt")
	}
	return PortalEntry{
		Name:       textOf(li, portalNameSelector),
		FromSchool: strings.TrimSpace(from),
		ToSchool:   strings.TrimSpace(to),
		Position:   textOf(li, portalPosSelector),
		Rating:     ParseFloatOrDefault(textOf(li, portalRatingSelector), RatingSentinel),
		Status:     textOf(li, portalStatusSelector),
		UpdateDate: date,
	}
}

// ScrapePortal collects every unique portal entry newer than the staleness
// cutoff, stopping after the batch in which a page comes back short or stale.
func (s *Scraper) ScrapePortal(ctx context.Context) ([]PortalEntry, error) {
	today := civil.DateOf(s.clock.Now())
	cutoff := today.AddDays(-s.cfg.StaleAfterDays)

	fetch := func(ctx context.Context, page int) (Page[PortalEntry], error) {
		doc, err := s.fetcher.Fetch(ctx, s.PortalURL(page))
		if err != nil {
			metrics.ObservePage(string(KindPortal), "error")
			return Page[PortalEntry]{}, fmt.Errorf("fetch portal page %d: %w", page, err)
		}
		metrics.ObservePage(string(KindPortal), "ok")
		res := ParsePortalPage(doc, today, cutoff)
		s.logger.Info("portal page parsed",
			zap.Int("page", page),
			zap.Int("entries", len(res.Records)),
			zap.Bool("stale", res.Stale),
		)
		return res, nil
	}
	minEntries := s.cfg.MinEntriesToContinue
	stop := func(p Page[PortalEntry]) bool {
		return p.Stale || len(p.Records) < minEntries
	}

	idx := NewIndex[PortalEntry]()
	if err := FetchAll(ctx, s.options(KindPortal), idx, 1, fetch, stop); err != nil {
		return nil, fmt.Errorf("scrape portal: %w", err)
	}

	metrics.ObserveRecords(string(KindPortal), idx.Len())
	s.logger.Info("portal scraped", zap.Int("total", idx.Len()), zap.String("cutoff", cutoff.String()))
	return idx.Records(), nil
}
