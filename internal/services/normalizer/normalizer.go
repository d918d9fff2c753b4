// Package normalizer turns raw tabular files into canonical transaction
// records using a per-feed column mapping.
package normalizer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Internal semantic field names. Mapping configurations map file headers
// onto these; everything downstream speaks only these names.
const (
	FieldID          = "internal_id"
	FieldDate        = "internal_date"
	FieldAmount      = "internal_amount"
	FieldDescription = "internal_description"
)

// Side marks which feed a record came from.
type Side string

const (
	SideSource Side = "Source"
	SideTarget Side = "Target"
)

// Record is one canonical transaction. Immutable once created; lives for a
// single reconciliation run.
type Record struct {
	ExternalID  string
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Side        Side
}

// Mapping configures how one feed's columns map to internal fields.
type Mapping struct {
	ID         string
	Columns    map[string]string // file header -> internal field
	DateFormat string            // Go reference layout; empty = best-effort defaults
}

// Result carries the ordered records plus the count of rows dropped during
// cleaning.
type Result struct {
	Records []Record
	Dropped int
}

// MappingError reports a mapping configuration that does not cover all four
// required semantic fields. It is raised before the file is read.
type MappingError struct {
	MappingID string
	Missing   []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s missing required fields: %s", e.MappingID, strings.Join(e.Missing, ", "))
}

// ParseError reports an unsupported or structurally unreadable file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var defaultDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
}

type Normalizer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Parse reads the file at path and returns canonical records in file row
// order. Rows with an unparseable date or amount, or missing an id, are
// dropped and counted; a missing description defaults to the empty string.
// A fresh call with the same file and mapping yields the same sequence.
func (n *Normalizer) Parse(path string, m Mapping, side Side) (*Result, error) {
	required := []string{FieldID, FieldDate, FieldAmount, FieldDescription}
	mapped := make(map[string]bool, len(m.Columns))
	for _, internal := range m.Columns {
		mapped[internal] = true
	}
	var missing []string
	for _, f := range required {
		if !mapped[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &MappingError{MappingID: m.ID, Missing: missing}
	}

	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &ParseError{Path: path, Err: errors.New("file is empty")}
	}

	header := rows[0]
	fieldIdx := make(map[string]int, len(required))
	for i, h := range header {
		if internal, ok := m.Columns[strings.TrimSpace(h)]; ok {
			fieldIdx[internal] = i
		}
	}
	for _, f := range required {
		if _, ok := fieldIdx[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{
			Path: path,
			Err:  fmt.Errorf("headers do not cover mapped fields: %s", strings.Join(missing, ", ")),
		}
	}

	res := &Result{}
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec, ok := n.buildRecord(row, fieldIdx, m, side)
		if !ok {
			res.Dropped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	if res.Dropped > 0 {
		n.logger.Warn("dropped rows during normalization",
			zap.String("path", path),
			zap.String("mapping", m.ID),
			zap.Int("dropped", res.Dropped))
	}
	n.logger.Info("normalized file",
		zap.String("path", path),
		zap.String("mapping", m.ID),
		zap.Int("records", len(res.Records)))
	return res, nil
}

func (n *Normalizer) buildRecord(row []string, fieldIdx map[string]int, m Mapping, side Side) (Record, bool) {
	id := strings.TrimSpace(cell(row, fieldIdx[FieldID]))
	if id == "" {
		return Record{}, false
	}
	date, ok := parseDate(cell(row, fieldIdx[FieldDate]), m.DateFormat)
	if !ok {
		return Record{}, false
	}
	amount, ok := CleanAmount(cell(row, fieldIdx[FieldAmount]))
	if !ok {
		return Record{}, false
	}
	return Record{
		ExternalID:  id,
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(cell(row, fieldIdx[FieldDescription])),
		Side:        side,
	}, true
}

// CleanAmount strips currency symbols and thousands separators and treats a
// parenthesized value as negative.
func CleanAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, false
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func parseDate(raw, layout string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	layouts := defaultDateLayouts
	if layout != "" {
		layouts = []string{layout}
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blankRow(row []string) bool {
	return strings.TrimSpace(strings.Join(row, "")) == ""
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, &ParseError{Path: path, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(path))}
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Path: path, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return rows, nil
}
