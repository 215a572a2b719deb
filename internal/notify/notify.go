/*
Package notify reports extraction results via console output and email.
*/
package notify

import (
	"fmt"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/ltourillon/boamp-scraper/internal/models"
)

type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
	Enabled    bool
}

// ReportCompanies prints the extraction result to the console.
func ReportCompanies(records []models.CompanyRecord) {
	if len(records) == 0 {
		fmt.Println("\n-------------------------------------------")
		fmt.Println("Aucune entreprise attributaire trouvée.")
		fmt.Println("-------------------------------------------")
		return
	}

	fmt.Println("\n===========================================")
	fmt.Printf("✅ %d ENTREPRISE(S) TROUVÉE(S)\n", len(records))
	fmt.Println("===========================================")

	for i, rec := range records {
		fmt.Printf("\n--- ENTREPRISE #%d ---\n", i+1)
		fmt.Printf("Nom:       %s\n", rec.Name)
		fmt.Printf("Lot:       %s\n", rec.LotTitle)
		if rec.Email != "" {
			fmt.Printf("Email:     %s\n", rec.Email)
		}
		if rec.Phone != "" {
			fmt.Printf("Téléphone: %s\n", rec.Phone)
		}
		if rec.City != "" {
			fmt.Printf("Ville:     %s\n", rec.City)
		}
		if len(rec.Keywords) > 0 {
			fmt.Printf("Mots-clés: %s\n", strings.Join(rec.Keywords, ", "))
		}
		fmt.Printf("Avis:      %s\n", rec.SourceURL)
	}

	fmt.Println("\n===========================================")
}

// SendReport emails one plain-text summary of the run.
func SendReport(records []models.CompanyRecord, cfg EmailConfig) error {
	if !cfg.Enabled {
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%d entreprise(s) attributaire(s) extraite(s) du BOAMP.\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&body, "Avis %s\n", rec.NoticeID)
		fmt.Fprintf(&body, "Nom: %s\n", rec.Name)
		fmt.Fprintf(&body, "Lot: %s\n", rec.LotTitle)
		if rec.City != "" {
			fmt.Fprintf(&body, "Ville: %s\n", rec.City)
		}
		if rec.Email != "" {
			fmt.Fprintf(&body, "Email: %s\n", rec.Email)
		}
		if rec.Phone != "" {
			fmt.Fprintf(&body, "Téléphone: %s\n", rec.Phone)
		}
		if len(rec.Keywords) > 0 {
			fmt.Fprintf(&body, "Mots-clés: %s\n", strings.Join(rec.Keywords, ", "))
		}
		fmt.Fprintf(&body, "URL: %s\n\n", rec.SourceURL)
	}

	message := gomail.NewMessage()
	message.SetHeader("From", cfg.FromEmail)
	message.SetHeader("To", cfg.ToEmail)
	message.SetHeader("Subject", fmt.Sprintf("BOAMP: %d entreprise(s) attributaire(s)", len(records)))
	message.SetBody("text/plain", body.String())

	dialer := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	dialer.Timeout = 10 * time.Second

	if err := dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("send report email: %w", err)
	}
	return nil
}
