package boamp

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ltourillon/boamp-scraper/internal/extract"
	"github.com/ltourillon/boamp-scraper/internal/models"
)

// ProgressFunc reports mass-extraction progress to the presentation layer.
type ProgressFunc func(current, total int, message string)

// Scraper ties the record API to the extraction engine.
type Scraper struct {
	client *Client
	log    *slog.Logger
}

// NewScraper builds a scraper around an API client.
func NewScraper(client *Client, log *slog.Logger) *Scraper {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scraper{client: client, log: log}
}

// ScrapeNotice extracts winning companies from one award notice URL. A
// notice whose payload matches neither structured variant goes through the
// text-mode fallback, which deliberately reports nothing.
func (s *Scraper) ScrapeNotice(ctx context.Context, noticeURL string, keywords []string) ([]models.CompanyRecord, error) {
	idweb := NoticeIDFromURL(noticeURL)
	if idweb == "" {
		return nil, fmt.Errorf("no BOAMP notice id in url %s", noticeURL)
	}

	doc, err := s.client.FetchNotice(ctx, idweb)
	if err != nil {
		return nil, err
	}

	variant := extract.Dispatch(doc)
	s.log.Debug("notice fetched",
		slog.String("idweb", idweb),
		slog.String("variant", variant.String()),
	)

	records := extract.Extract(s.log, doc, keywords, noticeURL)
	if variant == extract.VariantUnknown {
		s.fallbackHTML(ctx, idweb)
	}

	for i := range records {
		records[i].NoticeID = idweb
	}
	return records, nil
}

// fallbackHTML mirrors the retired text-mode scraper: it pulls the rendered
// notice HTML for diagnostics but reports no companies. Keyword matching on
// free page text produced far too much noise to be worth keeping.
func (s *Scraper) fallbackHTML(ctx context.Context, idweb string) {
	htmlContent, err := s.client.FetchNoticeHTML(ctx, idweb)
	if err != nil {
		s.log.Debug("html fallback fetch failed", slog.String("idweb", idweb), slog.Any("err", err))
		return
	}
	text := htmlText(htmlContent)
	s.log.Info("unstructured notice skipped",
		slog.String("idweb", idweb),
		slog.Int("text_len", len(text)),
	)
}

// ScrapeSearch walks every notice of a BOAMP search-result page. Per-notice
// failures are logged and skipped so one bad notice cannot sink the run.
func (s *Scraper) ScrapeSearch(ctx context.Context, searchURL string, keywords []string, rows int, progress ProgressFunc) ([]models.CompanyRecord, error) {
	ids, total, err := s.client.SearchIDs(ctx, searchURL, rows)
	if err != nil {
		return nil, err
	}
	s.log.Info("search page resolved", slog.Int("returned", len(ids)), slog.Int("total_hits", total))

	var all []models.CompanyRecord
	for i, idweb := range ids {
		if progress != nil {
			progress(i+1, len(ids), fmt.Sprintf("avis %s", idweb))
		}
		records, err := s.ScrapeNotice(ctx, NoticeURL(idweb), keywords)
		if err != nil {
			s.log.Warn("notice scrape failed", slog.String("idweb", idweb), slog.Any("err", err))
			continue
		}
		all = append(all, records...)
	}
	return all, nil
}
