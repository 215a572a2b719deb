package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/ltourillon/boamp-scraper/internal/models"
)

var (
	// lotHeaderRe marks the "Lot N° 3 - Peinture" boundaries of the award
	// text block.
	lotHeaderRe = regexp.MustCompile(`Lot\s*N°\s*\d+\s*-\s*[^\n]+`)
	// marketRefRe locates the market reference line; the line after it is
	// the company descriptor.
	marketRefRe = regexp.MustCompile(`(?i)Marché\s*n°\s*:\s*[^\n]+`)
	// postalCodeRe grabs a French 5-digit postal code and the trailing city
	// text. Known precision limit: any earlier 5-digit token on the company
	// line (SIREN fragment, street number ranges) misfires, and non-French
	// postal formats are not recognized.
	postalCodeRe = regexp.MustCompile(`\b\d{5}\b\s*(.+)`)
)

// cancelledMarker flags lots where no award was made ("lot infructueux").
const cancelledMarker = "infructueux"

// ParseFNSimple extracts winners from the legacy FNSimple variant, whose
// award section is one semi-structured text block under
// FNSimple/attribution/attributionMarche. The block is split on lot headers
// and each chunk is attributed to the most recently seen lot title. The
// format carries no e-mail or phone signal, so those fields stay empty.
func ParseFNSimple(log *slog.Logger, doc map[string]any, keywords []string, sourceURL string) (records []models.CompanyRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("fnsimple parse failed", slog.Any("panic", r))
			records = nil
		}
	}()

	attribution := childMap(childMap(doc, "FNSimple"), "attribution")
	block, _ := attribution["attributionMarche"].(string)
	if block == "" {
		return nil
	}

	results := newResultSet()
	for _, chunk := range splitLotChunks(block) {
		// Keyword filter against the lot title first, the chunk body as a
		// fallback.
		matched := matchKeywords(chunk.title, keywords)
		if len(matched) == 0 {
			matched = matchKeywords(chunk.body, keywords)
		}
		if len(keywords) > 0 && len(matched) == 0 {
			continue
		}

		if strings.Contains(strings.ToLower(chunk.body), cancelledMarker) {
			continue
		}

		ref := marketRefRe.FindStringIndex(chunk.body)
		if ref == nil {
			continue
		}

		remainder := strings.TrimSpace(chunk.body[ref[1]:])
		companyLine, _, _ := strings.Cut(remainder, "\n")
		companyLine = strings.TrimSpace(companyLine)
		// The amount sometimes runs on without a line break.
		if i := strings.Index(companyLine, "Montant"); i >= 0 {
			companyLine = strings.TrimSpace(companyLine[:i])
		}
		if companyLine == "" {
			continue
		}

		// Expected descriptor: "Name, address, postal-code city, ...".
		tokens := strings.Split(companyLine, ",")
		name := strings.TrimSpace(tokens[0])

		city := ""
		if m := postalCodeRe.FindString(companyLine); m != "" {
			city = m
		} else if len(tokens) > 1 {
			city = strings.TrimSpace(tokens[len(tokens)-1])
		}

		results.add(models.CompanyRecord{
			Name:      name,
			LotTitle:  chunk.title,
			City:      city,
			Keywords:  matched,
			SourceURL: sourceURL,
		})
	}
	return results.records()
}

type lotChunk struct {
	title string
	body  string
}

// splitLotChunks slices the award block on lot headers, keeping each header
// as the title of the content that follows it. Text before the first header
// becomes a chunk with an empty title.
func splitLotChunks(block string) []lotChunk {
	var chunks []lotChunk
	prev, title := 0, ""
	for _, loc := range lotHeaderRe.FindAllStringIndex(block, -1) {
		if body := strings.TrimSpace(block[prev:loc[0]]); body != "" {
			chunks = append(chunks, lotChunk{title: title, body: body})
		}
		title = strings.TrimSpace(block[loc[0]:loc[1]])
		prev = loc[1]
	}
	if body := strings.TrimSpace(block[prev:]); body != "" {
		chunks = append(chunks, lotChunk{title: title, body: body})
	}
	return chunks
}
