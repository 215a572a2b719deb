// Package export renders extracted company records as CSV or XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ltourillon/boamp-scraper/internal/models"
)

// SheetName is the single worksheet of XLSX exports.
const SheetName = "Entreprises"

var columns = []string{
	"notice_id", "name", "lot_title", "email", "phone", "city", "keywords", "source_url",
}

func row(rec models.CompanyRecord) []string {
	return []string{
		rec.NoticeID,
		rec.Name,
		rec.LotTitle,
		rec.Email,
		rec.Phone,
		rec.City,
		strings.Join(rec.Keywords, ", "),
		rec.SourceURL,
	}
}

// WriteCSV streams records as CSV with a header row.
func WriteCSV(w io.Writer, records []models.CompanyRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write(row(rec)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteXLSX streams records as a one-sheet workbook.
func WriteXLSX(w io.Writer, records []models.CompanyRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", SheetName)

	cell, err := excelize.CoordinatesToCellName(1, 1)
	if err != nil {
		return fmt.Errorf("header cell: %w", err)
	}
	if err := f.SetSheetRow(SheetName, cell, &columns); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row cell: %w", err)
		}
		values := row(rec)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
