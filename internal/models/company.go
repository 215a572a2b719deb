package models

import "time"

// CompanyRecord is one winning company extracted from an award notice.
// Name doubles as the merge key: a company that wins several lots of the
// same notice appears once, with its lot titles joined by " | " and the
// matched keyword sets unioned.
type CompanyRecord struct {
	Name      string   `json:"name"`
	LotTitle  string   `json:"lot_title"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	City      string   `json:"city"`
	Keywords  []string `json:"keywords"`
	SourceURL string   `json:"source_url"`
	NoticeID  string   `json:"notice_id"`
}

// StoredCompany is the canonical document shape stored in Elasticsearch.
type StoredCompany struct {
	ID string `json:"id"`
	CompanyRecord
	ExtractedAt time.Time `json:"extracted_at"`
}

// ScrapeJob is the Kafka message consumed by the worker. One job covers one
// award notice.
type ScrapeJob struct {
	JobID     string   `json:"job_id"`
	IDWeb     string   `json:"idweb"`
	Keywords  []string `json:"keywords"`
	SourceURL string   `json:"source_url"`
}
