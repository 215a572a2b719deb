package extract

import (
	"io"
	"log/slog"

	"github.com/ltourillon/boamp-scraper/internal/models"
)

// Variant identifies which parser applies to a decoded notice payload.
type Variant int

const (
	// VariantUnknown means neither structured format is present; the caller
	// falls back to unstructured handling, which reports nothing.
	VariantUnknown Variant = iota
	// VariantEforms is the structured European eForms schema.
	VariantEforms
	// VariantFNSimple is the older semi-structured text format.
	VariantFNSimple
)

func (v Variant) String() string {
	switch v {
	case VariantEforms:
		return "eforms"
	case VariantFNSimple:
		return "fnsimple"
	default:
		return "unknown"
	}
}

// Dispatch inspects the decoded "donnees" payload for the top-level marker
// key of a known schema variant.
func Dispatch(doc map[string]any) Variant {
	if _, ok := doc["EFORMS"]; ok {
		return VariantEforms
	}
	if _, ok := doc["FNSimple"]; ok {
		return VariantFNSimple
	}
	return VariantUnknown
}

// Extract runs the parser matching the document's schema variant. Unknown
// variants and malformed documents yield an empty list, never an error:
// "no companies found" is a normal outcome for a notice. The document is
// only read; calling Extract twice on the same document and keyword set
// yields identical output.
func Extract(log *slog.Logger, doc map[string]any, keywords []string, sourceURL string) []models.CompanyRecord {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	switch Dispatch(doc) {
	case VariantEforms:
		return ParseEforms(log, doc, keywords, sourceURL)
	case VariantFNSimple:
		return ParseFNSimple(log, doc, keywords, sourceURL)
	default:
		log.Debug("notice matches no structured variant")
		return nil
	}
}
