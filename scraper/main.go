package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ltourillon/boamp-scraper/internal/boamp"
	"github.com/ltourillon/boamp-scraper/internal/export"
	"github.com/ltourillon/boamp-scraper/internal/logger"
	"github.com/ltourillon/boamp-scraper/internal/models"
	"github.com/ltourillon/boamp-scraper/internal/notify"
)

func main() {
	rawURL := flag.String("url", "", "BOAMP notice or search-result URL (https://www.boamp.fr/...)")
	keywordStr := flag.String("keywords", "", "Comma-separated keywords filtering lots (e.g., 'plomberie, chauffage')")
	rows := flag.Int("rows", 50, "Maximum notices to walk on a search-result URL")
	csvPath := flag.String("csv", "", "Write results to this CSV file")
	xlsxPath := flag.String("xlsx", "", "Write results to this XLSX file")
	apiBase := flag.String("api-base", "", "Override the records API base URL")
	timeout := flag.Duration("timeout", 15*time.Second, "HTTP timeout per API call")

	smtpServer := flag.String("smtp-server", "", "SMTP server address (e.g., smtp.gmail.com)")
	smtpPort := flag.Int("smtp-port", 587, "SMTP server port")
	smtpUser := flag.String("smtp-user", "", "SMTP username")
	smtpPass := flag.String("smtp-pass", "", "SMTP password or App Password")
	fromEmail := flag.String("from-email", "", "Sender email address")
	toEmail := flag.String("to-email", "", "Recipient email address")

	flag.Parse()

	log := logger.New("scraper")

	if strings.TrimSpace(*rawURL) == "" {
		fmt.Fprintln(os.Stderr, "usage: scraper -url <boamp url> [-keywords ...] [-csv out.csv] [-xlsx out.xlsx]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	keywords := splitKeywords(*keywordStr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	scraper := boamp.NewScraper(boamp.NewClient(*apiBase, *timeout, log), log)

	var records []models.CompanyRecord
	var err error
	if boamp.IsSearchURL(*rawURL) {
		records, err = scraper.ScrapeSearch(ctx, *rawURL, keywords, *rows, consoleProgress)
		fmt.Println()
	} else {
		records, err = scraper.ScrapeNotice(ctx, *rawURL, keywords)
	}
	if err != nil {
		log.Error("extraction failed", slog.Any("err", err))
		os.Exit(1)
	}

	notify.ReportCompanies(records)

	if *csvPath != "" {
		if err := writeFile(*csvPath, records, export.WriteCSV); err != nil {
			log.Error("csv export failed", slog.Any("err", err))
			os.Exit(1)
		}
		log.Info("csv written", slog.String("path", *csvPath), slog.Int("companies", len(records)))
	}

	if *xlsxPath != "" {
		if err := writeFile(*xlsxPath, records, export.WriteXLSX); err != nil {
			log.Error("xlsx export failed", slog.Any("err", err))
			os.Exit(1)
		}
		log.Info("xlsx written", slog.String("path", *xlsxPath), slog.Int("companies", len(records)))
	}

	emailCfg := notify.EmailConfig{
		SMTPServer: *smtpServer,
		SMTPPort:   *smtpPort,
		SMTPUser:   *smtpUser,
		SMTPPass:   *smtpPass,
		FromEmail:  *fromEmail,
		ToEmail:    *toEmail,
		Enabled:    *smtpServer != "" && *toEmail != "",
	}
	if err := notify.SendReport(records, emailCfg); err != nil {
		log.Error("email report failed", slog.Any("err", err))
	}
}

func consoleProgress(current, total int, message string) {
	fmt.Printf("\rTraitement... %d/%d (%s)", current, total, message)
}

func splitKeywords(raw string) []string {
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

func writeFile(path string, records []models.CompanyRecord, write func(w io.Writer, records []models.CompanyRecord) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return write(f, records)
}
