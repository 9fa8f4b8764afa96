package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"base44/internal/model"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CSVIngestor parses uploaded files under the connector's declared delimiter,
// encoding and header configuration. Payloads above MaxBytes are rejected
// before any parsing happens.
type CSVIngestor struct {
	MaxBytes int64
}

func NewCSVIngestor(maxBytes int64) *CSVIngestor {
	return &CSVIngestor{MaxBytes: maxBytes}
}

// Parse returns the file's rows keyed by column name, plus the column list.
// Cell values are whitespace-trimmed; fully empty rows are dropped. The rows
// are the verbatim raw payload: no mapping or transformation happens here.
func (s *CSVIngestor) Parse(content []byte, opts model.CSVOptions) ([]map[string]string, []string, error) {
	if s.MaxBytes > 0 && int64(len(content)) > s.MaxBytes {
		return nil, nil, fmt.Errorf("file too large: %d bytes, maximum is %d", len(content), s.MaxBytes)
	}

	reader, err := decodeReader(content, opts.Encoding)
	if err != nil {
		return nil, nil, err
	}

	delimiter := ','
	if opts.Delimiter != "" {
		runes := []rune(opts.Delimiter)
		if len(runes) != 1 {
			return nil, nil, fmt.Errorf("delimiter must be a single character, got %q", opts.Delimiter)
		}
		delimiter = runes[0]
	}

	cr := csv.NewReader(reader)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("no data found in csv file")
	}

	var columns []string
	var dataRecords [][]string
	if opts.HasHeader {
		for _, col := range records[0] {
			columns = append(columns, strings.TrimSpace(col))
		}
		dataRecords = records[1:]
	} else {
		for i := range records[0] {
			columns = append(columns, fmt.Sprintf("column_%d", i+1))
		}
		dataRecords = records
	}

	rows := make([]map[string]string, 0, len(dataRecords))
	for _, record := range dataRecords {
		row := make(map[string]string, len(columns))
		empty := true
		for i, col := range columns {
			if col == "" || i >= len(record) {
				continue
			}
			value := strings.TrimSpace(record[i])
			row[col] = value
			if value != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no data found in csv file")
	}

	for _, required := range opts.RequiredColumns {
		if !containsColumn(columns, required) {
			return nil, nil, fmt.Errorf("missing required column %q", required)
		}
	}

	return rows, columns, nil
}

func containsColumn(columns []string, name string) bool {
	for _, col := range columns {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

// decodeReader wraps the payload with a charset decoder for the connector's
// declared encoding
func decodeReader(content []byte, encoding string) (io.Reader, error) {
	raw := bytes.NewReader(content)
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return raw, nil
	case "latin-1", "latin1", "iso-8859-1":
		return transform.NewReader(raw, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(raw, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
