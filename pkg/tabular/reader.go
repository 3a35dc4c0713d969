package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader streams delimited files for row counting and previews. Operations
// are read-only and safe to run concurrently against the same file.
type Reader struct{}

// NewReader builds a tabular reader.
func NewReader() *Reader {
	return &Reader{}
}

// CountRows streams the file and counts data rows, excluding the header.
func (r *Reader) CountRows(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open tabular file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	count := 0
	header := true
	for {
		_, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read tabular row: %w", err)
		}
		if header {
			header = false
			continue
		}
		count++
	}
	return count, nil
}

// PreviewRows lazily reads at most limit data rows together with the header.
// An empty file yields empty headers and rows without error.
func (r *Reader) PreviewRows(path string, limit int) ([]string, []map[string]string, error) {
	if limit <= 0 {
		limit = 5
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open tabular file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []string{}, []map[string]string{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read tabular header: %w", err)
	}

	rows := make([]map[string]string, 0, limit)
	for len(rows) < limit {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read tabular row: %w", err)
		}
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}
