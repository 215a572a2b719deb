package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ltourillon/boamp-scraper/internal/boamp"
	"github.com/ltourillon/boamp-scraper/internal/config"
	"github.com/ltourillon/boamp-scraper/internal/elasticsearch"
	"github.com/ltourillon/boamp-scraper/internal/export"
	"github.com/ltourillon/boamp-scraper/internal/logger"
	"github.com/ltourillon/boamp-scraper/internal/models"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	scraper := boamp.NewScraper(boamp.NewClient(cfg.APIBase, cfg.Timeout, log), log)

	jobWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic,
		MaxAttempts: 3,
	})
	defer jobWriter.Close()

	srv := &server{log: log, cfg: cfg, es: esClient, scraper: scraper, jobs: jobWriter}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/companies", srv.handleSearch)
	r.Post("/extract", srv.handleExtract)
	r.Get("/extract/csv", srv.handleExtractCSV)
	r.Get("/extract/xlsx", srv.handleExtractXLSX)
	r.Post("/jobs", srv.handleSubmitJob)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log     *slog.Logger
	cfg     *config.API
	es      *elasticsearch.Client
	scraper *boamp.Scraper
	jobs    *kafka.Writer
}

type errorResponse struct {
	Error string `json:"error"`
}

type extractRequest struct {
	URL      string   `json:"url"`
	Keywords []string `json:"keywords"`
	Rows     int      `json:"rows"`
}

type extractResponse struct {
	Total     int                    `json:"total"`
	Companies []models.CompanyRecord `json:"companies"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.es.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	params := elasticsearch.SearchParams{
		Query:    strings.TrimSpace(r.URL.Query().Get("q")),
		Keywords: parseCSV(r.URL.Query().Get("keywords")),
		City:     strings.TrimSpace(r.URL.Query().Get("city")),
		NoticeID: strings.TrimSpace(r.URL.Query().Get("notice_id")),
		From:     clampInt(r.URL.Query().Get("from"), 0, 10_000),
		Size:     clampInt(r.URL.Query().Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:     strings.TrimSpace(r.URL.Query().Get("sort")),
	}

	result, err := s.es.SearchCompanies(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleExtract scrapes synchronously and returns the companies without
// touching the index. Search URLs fan out over every hit, so the timeout is
// generous.
func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	records, err := s.extract(r.Context(), req.URL, req.Keywords, req.Rows)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{Total: len(records), Companies: records})
}

func (s *server) handleExtractCSV(w http.ResponseWriter, r *http.Request) {
	records, err := s.extractFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="entreprises_boamp.csv"`)
	if err := export.WriteCSV(w, records); err != nil {
		s.log.Error("write csv", slog.Any("err", err))
	}
}

func (s *server) handleExtractXLSX(w http.ResponseWriter, r *http.Request) {
	records, err := s.extractFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="entreprises_boamp.xlsx"`)
	if err := export.WriteXLSX(w, records); err != nil {
		s.log.Error("write xlsx", slog.Any("err", err))
	}
}

func (s *server) extractFromQuery(r *http.Request) ([]models.CompanyRecord, error) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	keywords := parseCSV(r.URL.Query().Get("keywords"))
	rows := clampInt(r.URL.Query().Get("rows"), s.cfg.Rows, 1000)
	return s.extract(r.Context(), url, keywords, rows)
}

func (s *server) extract(ctx context.Context, url string, keywords []string, rows int) ([]models.CompanyRecord, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("url is required")
	}
	if rows <= 0 {
		rows = s.cfg.Rows
	}

	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	if boamp.IsSearchURL(url) {
		return s.scraper.ScrapeSearch(ctx, url, keywords, rows, nil)
	}
	return s.scraper.ScrapeNotice(ctx, url, keywords)
}

type jobRequest struct {
	URL      string   `json:"url"`
	IDWeb    string   `json:"idweb"`
	Keywords []string `json:"keywords"`
}

// handleSubmitJob queues one notice for asynchronous extraction by the
// worker.
func (s *server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	idweb := strings.TrimSpace(req.IDWeb)
	if idweb == "" {
		idweb = boamp.NoticeIDFromURL(req.URL)
	}
	if idweb == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "idweb or a notice url is required"})
		return
	}

	job := models.ScrapeJob{
		JobID:     uuid.NewString(),
		IDWeb:     idweb,
		Keywords:  req.Keywords,
		SourceURL: boamp.NoticeURL(idweb),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.jobs.WriteMessages(ctx, kafka.Message{Key: []byte(idweb), Value: payload}); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	s.log.Info("job queued", slog.String("job_id", job.JobID), slog.String("idweb", idweb))
	writeJSON(w, http.StatusAccepted, job)
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
