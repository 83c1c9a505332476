package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV loads a comma-separated file with a header row into a raw frame.
// The frame is named after the file's base name.
func ReadCSV(path string) (*Frame, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return ParseCSV(filepath.Base(path), bytes.NewReader(b))
}

// ParseCSV reads CSV content into a raw frame.
//
// Empty header cells are renamed to "Unnamed: N" and repeated headers get a
// ".1", ".2" suffix. Short rows are padded with empty cells. Long rows are
// accepted only when every extra cell is empty.
func ParseCSV(name string, src io.Reader) (*Frame, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	b = bytes.TrimPrefix(b, utf8BOM)

	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file, no header row", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: parse header: %w", name, err)
	}

	names := repairHeader(header)
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: TypeRaw}
	}

	frame := &Frame{Name: name, Columns: cols}
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%s: parse row %d: %w", name, line, err)
		}

		if len(rec) > len(cols) {
			for _, extra := range rec[len(cols):] {
				if extra != "" {
					return nil, fmt.Errorf("%s: row %d has %d fields, header has %d", name, line, len(rec), len(cols))
				}
			}
			rec = rec[:len(cols)]
		}

		row := make([]any, len(cols))
		for i := range cols {
			if i < len(rec) {
				row[i] = rec[i]
			} else {
				row[i] = ""
			}
		}
		frame.Rows = append(frame.Rows, row)
	}

	return frame, nil
}

// repairHeader names empty cells "Unnamed: N" and suffixes repeats with
// ".1", ".2", ... skipping any suffix another column already uses. Names are
// compared case-insensitively.
func repairHeader(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[strings.ToLower(strings.TrimSpace(h))] = true
	}

	used := make(map[string]bool, len(header))
	suffix := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}

		key := strings.ToLower(name)
		if used[key] {
			base := name
			n := suffix[key]
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if !taken[strings.ToLower(name)] {
					break
				}
			}
			suffix[key] = n
		}

		key = strings.ToLower(name)
		used[key] = true
		taken[key] = true
		out[i] = name
	}
	return out
}
