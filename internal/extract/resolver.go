package extract

import (
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/ltourillon/boamp-scraper/internal/models"
)

// winnerSelected is the only lot-result outcome that names a winner; every
// other outcome code (unsuccessful, cancelled, pending) is discarded.
const winnerSelected = "selec-w"

// unknownLotTitle is the placeholder for a lot result that references a lot
// the notice never declared.
const unknownLotTitle = "Lot inconnu"

// ParseEforms extracts winning companies from the structured eForms variant.
// It never fails: a document without the expected envelope yields an empty
// list, and an unexpected panic while walking the document is recovered and
// reported as empty, so one malformed notice cannot sink a batch.
func ParseEforms(log *slog.Logger, doc map[string]any, keywords []string, sourceURL string) (records []models.CompanyRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("eforms parse failed", slog.Any("panic", r))
			records = nil
		}
	}()

	root := childMap(childMap(doc, "EFORMS"), "ContractAwardNotice")
	if root == nil {
		return nil
	}

	lots := BuildLotIndex(root)
	orgs := BuildOrgIndex(root)
	parties := BuildPartyIndex(root)

	return resolveAwards(root, lots, orgs, parties, keywords, sourceURL)
}

// resolveAwards walks the lot results of a contract award notice and follows
// the lot result -> tender -> tendering party -> organization chain. The
// source data never states that relationship directly; it has to be stitched
// together from the indices, and none of the hops is guaranteed to resolve.
// A hop that misses contributes nothing, never an error.
func resolveAwards(root map[string]any, lots map[string]LotInfo, orgs map[string]Organization, parties map[string][]string, keywords []string, sourceURL string) []models.CompanyRecord {
	noticeResult := childMap(extensionRoot(root), "efac:NoticeResult")

	// The LotTender list is the only place linking a tender offer to the
	// tendering party behind it.
	tenders := make(map[string]string)
	for _, tender := range Normalize(noticeResult["efac:LotTender"]) {
		tenderID := textValue(tender["cbc:ID"])
		if tenderID == "" {
			continue
		}
		tenders[tenderID] = textValue(childMap(tender, "efac:TenderingParty")["cbc:ID"])
	}

	results := newResultSet()
	for _, lotResult := range Normalize(noticeResult["efac:LotResult"]) {
		if textValue(lotResult["cbc:TenderResultCode"]) != winnerSelected {
			continue
		}

		lotID := textValue(childMap(lotResult, "efac:TenderLot")["cbc:ID"])
		lot, indexed := lots[lotID]
		if !indexed {
			lot = LotInfo{Title: unknownLotTitle}
		}

		matched := matchKeywords(lot.FullText, keywords)
		if len(keywords) > 0 && len(matched) == 0 {
			continue
		}

		tenderID := textValue(childMap(lotResult, "efac:LotTender")["cbc:ID"])
		partyID, ok := tenders[tenderID]
		if !ok {
			continue
		}

		for _, orgID := range parties[partyID] {
			org, ok := orgs[orgID]
			if !ok {
				continue
			}
			results.add(models.CompanyRecord{
				Name:      cleanName(org.Name),
				LotTitle:  lot.Title,
				Email:     org.Email,
				Phone:     org.Phone,
				City:      org.City,
				Keywords:  matched,
				SourceURL: sourceURL,
			})
		}
	}
	return results.records()
}

// matchKeywords returns the subset of keywords occurring case-insensitively
// as substrings of text, in the order given.
func matchKeywords(text string, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// cleanName flattens embedded newlines and trims the company name, which the
// source data sometimes wraps across lines.
func cleanName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "\n", " "))
}

// RecordID derives a deterministic storage ID for an extracted record, so
// re-scraping the same notice overwrites rather than duplicates.
func RecordID(noticeID, name string) string {
	s := sha1.Sum([]byte(noticeID + "|" + name))
	return hex.EncodeToString(s[:])
}

// resultSet accumulates company records keyed by company name, preserving
// discovery order.
type resultSet struct {
	byName map[string]*models.CompanyRecord
	order  []string
}

func newResultSet() *resultSet {
	return &resultSet{byName: make(map[string]*models.CompanyRecord)}
}

// add merges one winning allocation into the set. A new name is inserted; an
// existing record keeps its contact details, unions the matched keyword set
// and appends the lot title with " | " unless the combined title already
// contains it.
func (rs *resultSet) add(rec models.CompanyRecord) {
	existing, ok := rs.byName[rec.Name]
	if !ok {
		inserted := rec
		inserted.Keywords = append([]string(nil), rec.Keywords...)
		rs.byName[rec.Name] = &inserted
		rs.order = append(rs.order, rec.Name)
		return
	}
	existing.Keywords = unionKeywords(existing.Keywords, rec.Keywords)
	if !strings.Contains(existing.LotTitle, rec.LotTitle) {
		existing.LotTitle += " | " + rec.LotTitle
	}
}

// records returns the merged set in discovery order.
func (rs *resultSet) records() []models.CompanyRecord {
	out := make([]models.CompanyRecord, 0, len(rs.order))
	for _, name := range rs.order {
		out = append(out, *rs.byName[name])
	}
	return out
}

func unionKeywords(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, kw := range existing {
		seen[kw] = struct{}{}
	}
	for _, kw := range extra {
		if _, ok := seen[kw]; !ok {
			seen[kw] = struct{}{}
			existing = append(existing, kw)
		}
	}
	return existing
}
