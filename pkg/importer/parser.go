package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmpty is returned when the input holds no data rows.
var ErrEmpty = errors.New("csv input is empty")

const byteOrderMark = "\ufeff"

// ParseCSV splits delimited text into trimmed fields per record. Quoted
// fields may contain commas, doubled quotes and newlines. Blank lines are
// skipped and rows may have differing field counts.
func ParseCSV(text string) ([][]string, error) {
	text = strings.TrimPrefix(text, byteOrderMark)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records := make([][]string, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		if isBlank(record) {
			continue
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return records, nil
}

// ParseCSVReader reads the whole stream and delegates to ParseCSV.
func ParseCSVReader(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return ParseCSV(string(raw))
}

func isBlank(record []string) bool {
	for _, field := range record {
		if field != "" {
			return false
		}
	}
	return true
}

func column(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
