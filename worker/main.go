package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ltourillon/boamp-scraper/internal/boamp"
	"github.com/ltourillon/boamp-scraper/internal/config"
	"github.com/ltourillon/boamp-scraper/internal/dedupe"
	"github.com/ltourillon/boamp-scraper/internal/elasticsearch"
	"github.com/ltourillon/boamp-scraper/internal/extract"
	"github.com/ltourillon/boamp-scraper/internal/logger"
	"github.com/ltourillon/boamp-scraper/internal/models"
)

type noticeScraper interface {
	ScrapeNotice(ctx context.Context, noticeURL string, keywords []string) ([]models.CompanyRecord, error)
}

type companyIndexer interface {
	IndexCompany(ctx context.Context, doc models.StoredCompany) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
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
	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processJob(ctx, log, scraper, esClient, cache, msg); err != nil {
			log.Warn("process job failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			dlqMsg := kafka.Message{
				Value: msg.Value,
				Headers: append(msg.Headers,
					kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
					kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
					kafka.Header{Key: "error", Value: []byte(err.Error())},
					kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
				),
			}

			// Retry DLQ write with exponential backoff
			dlqSuccess := false
			for attempt := 0; attempt < 5; attempt++ {
				if dlqErr := dlqWriter.WriteMessages(ctx, dlqMsg); dlqErr == nil {
					dlqSuccess = true
					log.Info("job sent to DLQ",
						slog.Int("partition", msg.Partition),
						slog.Int64("offset", msg.Offset),
						slog.Int("attempt", attempt+1),
					)
					break
				} else {
					backoff := time.Duration(1<<uint(attempt)) * time.Second
					log.Warn("DLQ write failed, retrying",
						slog.Any("err", dlqErr),
						slog.Int("attempt", attempt+1),
						slog.Duration("backoff", backoff),
					)
					select {
					case <-time.After(backoff):
					case <-ctx.Done():
						log.Info("context canceled during DLQ retry")
						return
					}
				}
			}

			// Only commit if DLQ write succeeded; otherwise skip commit and reprocess on restart
			if dlqSuccess {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit failed job to dlq", slog.Any("err", err))
				}
			} else {
				log.Error("DLQ write exhausted retries, job may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

func processJob(ctx context.Context, log *slog.Logger, scraper noticeScraper, indexer companyIndexer, cache *dedupe.Cache, msg kafka.Message) error {
	var job models.ScrapeJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return err
	}

	idweb := strings.TrimSpace(job.IDWeb)
	if idweb == "" {
		return errors.New("job carries no idweb")
	}

	noticeURL := strings.TrimSpace(job.SourceURL)
	if noticeURL == "" {
		noticeURL = boamp.NoticeURL(idweb)
	}

	records, err := scraper.ScrapeNotice(ctx, noticeURL, job.Keywords)
	if err != nil {
		return fmt.Errorf("scrape notice %s: %w", idweb, err)
	}

	indexed := 0
	for _, rec := range records {
		id := extract.RecordID(rec.NoticeID, rec.Name)
		if cache.Seen(id) {
			log.Debug("duplicate company", slog.String("id", id), slog.String("name", rec.Name))
			continue
		}

		doc := models.StoredCompany{
			ID:            id,
			CompanyRecord: rec,
			ExtractedAt:   time.Now().UTC(),
		}
		if err := indexer.IndexCompany(ctx, doc); err != nil {
			return fmt.Errorf("index company %s: %w", rec.Name, err)
		}

		cache.Remember(id)
		indexed++
	}

	log.Info("job processed",
		slog.String("job_id", job.JobID),
		slog.String("idweb", idweb),
		slog.Int("companies", len(records)),
		slog.Int("indexed", indexed),
	)
	return nil
}
