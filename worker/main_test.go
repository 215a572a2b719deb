package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/ltourillon/boamp-scraper/internal/dedupe"
	"github.com/ltourillon/boamp-scraper/internal/models"
)

type stubScraper struct {
	records []models.CompanyRecord
	err     error
	urls    []string
}

func (s *stubScraper) ScrapeNotice(_ context.Context, noticeURL string, _ []string) ([]models.CompanyRecord, error) {
	s.urls = append(s.urls, noticeURL)
	return s.records, s.err
}

type stubIndexer struct {
	docs []models.StoredCompany
	err  error
}

func (s *stubIndexer) IndexCompany(_ context.Context, doc models.StoredCompany) error {
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

func jobMessage(t *testing.T, job models.ScrapeJob) kafka.Message {
	t.Helper()
	data, err := json.Marshal(job)
	require.NoError(t, err)
	return kafka.Message{Value: data}
}

func TestProcessJobIndexesCompanies(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := dedupe.NewCache(100, time.Hour)
	scraper := &stubScraper{records: []models.CompanyRecord{
		{Name: "Dupont SARL", LotTitle: "Lot N° 1 - Travaux", NoticeID: "24-123456"},
		{Name: "Martin SAS", LotTitle: "Lot N° 2 - Services", NoticeID: "24-123456"},
	}}
	idx := &stubIndexer{}

	msg := jobMessage(t, models.ScrapeJob{JobID: "job-1", IDWeb: "24-123456", Keywords: []string{"plomberie"}})

	require.NoError(t, processJob(context.Background(), log, scraper, idx, cache, msg))
	require.Len(t, idx.docs, 2)
	require.Equal(t, "Dupont SARL", idx.docs[0].Name)
	require.NotEmpty(t, idx.docs[0].ID)
	require.False(t, idx.docs[0].ExtractedAt.IsZero())

	// second delivery of the same job is absorbed by the dedupe cache
	require.NoError(t, processJob(context.Background(), log, scraper, idx, cache, msg))
	require.Len(t, idx.docs, 2)
}

func TestProcessJobBuildsNoticeURLWhenMissing(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	scraper := &stubScraper{}
	idx := &stubIndexer{}

	msg := jobMessage(t, models.ScrapeJob{JobID: "job-2", IDWeb: "24-654321"})

	require.NoError(t, processJob(context.Background(), log, scraper, idx, dedupe.NewCache(10, time.Hour), msg))
	require.Len(t, scraper.urls, 1)
	require.Contains(t, scraper.urls[0], "24-654321")
}

func TestProcessJobRejectsEmptyIDWeb(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	msg := jobMessage(t, models.ScrapeJob{JobID: "job-3"})

	err := processJob(context.Background(), log, &stubScraper{}, &stubIndexer{}, dedupe.NewCache(10, time.Hour), msg)
	require.Error(t, err)
}

func TestProcessJobPropagatesScrapeError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	scraper := &stubScraper{err: errors.New("api down")}
	msg := jobMessage(t, models.ScrapeJob{JobID: "job-4", IDWeb: "24-123456"})

	err := processJob(context.Background(), log, scraper, &stubIndexer{}, dedupe.NewCache(10, time.Hour), msg)
	require.ErrorContains(t, err, "api down")
}

func TestProcessJobPropagatesIndexError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	scraper := &stubScraper{records: []models.CompanyRecord{{Name: "Dupont SARL", NoticeID: "24-123456"}}}
	idx := &stubIndexer{err: errors.New("es unavailable")}
	msg := jobMessage(t, models.ScrapeJob{JobID: "job-5", IDWeb: "24-123456"})

	err := processJob(context.Background(), log, scraper, idx, dedupe.NewCache(10, time.Hour), msg)
	require.ErrorContains(t, err, "es unavailable")
}
