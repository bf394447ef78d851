// Package files extracts waybill/bin pairs from uploaded CSV and Excel files.
package files

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const MaxRows = 1000

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
}

// Header names we accept for each column, lower-cased. Files from the
// warehouse come with all sorts of spellings.
var waybillHeaders = map[string]bool{
	"waybill": true, "tracking_number": true, "tracking": true,
	"waybill_number": true, "tracking_no": true, "waybill_no": true,
	"trackingnumber": true, "waybillnumber": true, "awb": true,
	"tracking number": true, "waybill number": true,
}

var binHeaders = map[string]bool{
	"binid": true, "bin_id": true, "bin": true, "bin id": true, "bin-id": true,
	"bin_no": true, "binno": true, "bin number": true, "binnumber": true,
	"location": true, "bin_location": true, "binlocation": true,
}

func ValidateName(filename string, size, maxSize int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("invalid file type %q, allowed: .csv, .xlsx, .xls", ext)
	}
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("file too large, maximum size: %dMB", maxSize/(1024*1024))
	}
	return nil
}

// Parse reads tracking inputs from an uploaded file, dispatching on extension.
func Parse(filename string, r io.Reader) ([]models.TrackingInput, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSV(r)
	case ".xlsx", ".xls":
		return parseExcel(r)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filename)
	}
}

func parseCSV(r io.Reader) ([]models.TrackingInput, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	return fromRows(rows)
}

func parseExcel(r io.Reader) ([]models.TrackingInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open xlsx")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "read xlsx rows")
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]models.TrackingInput, error) {
	if len(rows) == 0 {
		return nil, errors.New("file has no rows")
	}

	waybillCol, binCol, hasHeader := findColumns(rows[0])
	if hasHeader {
		rows = rows[1:]
	}

	out := make([]models.TrackingInput, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		waybill := cell(row, waybillCol)
		if waybill == "" {
			continue
		}
		waybill = strings.ToUpper(waybill)
		if seen[waybill] {
			continue
		}
		seen[waybill] = true

		in := models.TrackingInput{TrackingNumber: waybill}
		if b := cell(row, binCol); b != "" {
			bin := b
			in.BinID = &bin
		}
		out = append(out, in)

		if len(out) > MaxRows {
			return nil, fmt.Errorf("maximum %d tracking numbers allowed", MaxRows)
		}
	}

	if len(out) == 0 {
		return nil, errors.New("no valid tracking data found in file")
	}
	return out, nil
}

// findColumns locates the waybill and bin columns by header name. Without a
// recognizable header the first column is the waybill and the second (when
// present) the bin, and row 0 is treated as data.
func findColumns(header []string) (waybillCol, binCol int, hasHeader bool) {
	waybillCol, binCol = 0, -1
	if len(header) >= 2 {
		binCol = 1
	}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if waybillHeaders[key] {
			waybillCol = i
			hasHeader = true
		}
		if binHeaders[key] {
			binCol = i
			hasHeader = true
		}
	}
	return waybillCol, binCol, hasHeader
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[col])
	low := strings.ToLower(v)
	if low == "nan" || low == "none" {
		return ""
	}
	return v
}
