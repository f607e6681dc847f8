package scrape

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/metrics"
)

const (
	recruitItemSelector   = "ul.rankings-page__list li"
	recruitNameSelector   = ".rankings-page__name-link"
	recruitPosSelector    = "div.position"
	recruitNatSelector    = "div.rank a.natrank"
	recruitPosRkSelector  = "div.rank a.posrank"
	recruitMetaSelector   = "span.meta"
	recruitCommitSelector = "div.status a.img-link img.jsonly[title]"

	// headerPlaceholder is the column-header row the rankings list renders as an item.
	headerPlaceholder = "player"
)

// ParseRecruitPage extracts recruits from one rankings page. Items is the raw
// listing count, including header and unnamed rows that yield no record.
func ParseRecruitPage(doc Node) Page[Recruit] {
	items := doc.FindAll(recruitItemSelector)
	page := Page[Recruit]{Items: len(items)}
	for _, li := range items {
		rec, ok := parseRecruit(li)
		if ok {
			page.Records = append(page.Records, rec)
		}
	}
	return page
}

func parseRecruit(li Node) (Recruit, bool) {
	nameNode, ok := li.Find(recruitNameSelector)
	if !ok {
		return Recruit{}, false
	}
	name := nameNode.Text()
	if name == "" || strings.EqualFold(name, headerPlaceholder) {
		return Recruit{}, false
	}

	school, city, state := "", "", ""
	if meta, ok := li.Find(recruitMetaSelector); ok {
		school, city, state = ParseSchoolLocation(meta.Text())
	}

	return Recruit{
		Name:         name,
		NationalRank: parseRank(textOf(li, recruitNatSelector)),
		PositionRank: parseRank(textOf(li, recruitPosRkSelector)),
		Position:     textOf(li, recruitPosSelector),
		HighSchool:   school,
		City:         city,
		State:        state,
		Commit:       attrOf(li, recruitCommitSelector, "title"),
	}, true
}

func (s *Scraper) fetchRecruitPage(ctx context.Context, page int) (Page[Recruit], error) {
	doc, err := s.fetcher.Fetch(ctx, s.RecruitsURL(page))
	if err != nil {
		metrics.ObservePage(string(KindRecruits), "error")
		return Page[Recruit]{}, fmt.Errorf("fetch recruits page %d: %w", page, err)
	}
	metrics.ObservePage(string(KindRecruits), "ok")
	res := ParseRecruitPage(doc)
	res.Number = page
	s.logger.Info("recruits page parsed", zap.Int("page", page), zap.Int("items", res.Items))
	return res, nil
}

// ScrapeRecruits collects every unique recruit. Page 1 is fetched alone to
// learn the full page size; later pages are fetched in batches until one
// holds fewer items than page 1.
func (s *Scraper) ScrapeRecruits(ctx context.Context) ([]Recruit, error) {
	first, err := s.fetchRecruitPage(ctx, 1)
	if err != nil {
		return nil, err
	}
	idx := NewIndex[Recruit]()
	idx.Merge(first.Records)

	pageSize := first.Items
	if pageSize == 0 {
		s.logger.Warn("recruits page 1 is empty; nothing to paginate")
		return idx.Records(), nil
	}

	stop := func(p Page[Recruit]) bool {
		return p.Items < pageSize
	}
	if err := FetchAll(ctx, s.options(KindRecruits), idx, 2, s.fetchRecruitPage, stop); err != nil {
		return nil, fmt.Errorf("scrape recruits: %w", err)
	}

	metrics.ObserveRecords(string(KindRecruits), idx.Len())
	s.logger.Info("recruits scraped", zap.Int("total", idx.Len()), zap.Int("page_size", pageSize))
	return idx.Records(), nil
}
