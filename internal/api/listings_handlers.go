package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

type listingResponse[T any] struct {
	Kind    scrape.Kind `json:"kind"`
	Count   int         `json:"count"`
	Records []T         `json:"records"`
}

// scrapeRecruits handles GET /v1/recruits by scraping the rankings on demand.
// Nothing is written to the sheet.
func (s *Server) scrapeRecruits(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scraper == nil {
		writeError(w, http.StatusServiceUnavailable, "scraper unavailable")
		return
	}
	recruits, err := s.deps.Scraper.ScrapeRecruits(r.Context())
	if err != nil {
		s.logger.Error("on-demand recruits scrape failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to scrape recruits")
		return
	}
	scrape.NormalizeRecruits(recruits)
	if recruits == nil {
		recruits = []scrape.Recruit{}
	}
	writeJSON(w, http.StatusOK, listingResponse[scrape.Recruit]{
		Kind:    scrape.KindRecruits,
		Count:   len(recruits),
		Records: recruits,
	})
}

// scrapePortal handles GET /v1/portal.
func (s *Server) scrapePortal(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scraper == nil {
		writeError(w, http.StatusServiceUnavailable, "scraper unavailable")
		return
	}
	entries, err := s.deps.Scraper.ScrapePortal(r.Context())
	if err != nil {
		s.logger.Error("on-demand portal scrape failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to scrape portal")
		return
	}
	scrape.NormalizePortal(entries)
	if entries == nil {
		entries = []scrape.PortalEntry{}
	}
	writeJSON(w, http.StatusOK, listingResponse[scrape.PortalEntry]{
		Kind:    scrape.KindPortal,
		Count:   len(entries),
		Records: entries,
	})
}
