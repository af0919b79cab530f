// Package tabular turns raw CSV/XLSX uploads into normalized record sets.
//
// The package is responsible for:
//   - Decoding raw bytes into an ordered table of literal text cells
//   - Normalizing headers and rows into uniform string-keyed records
//   - Inferring label vs numeric fields for chart builders
//
// Design constraints:
//   - Cell values are never parsed into floats during decoding. A cell that
//     reads "0.1034" must survive the whole pipeline as the string "0.1034";
//     numeric interpretation happens only at chart-render time, downstream.
//   - Decoding is permissive about encodings (UTF-8 with Latin-1 fallback)
//     and delimiters (sniffed), but strict about extensions and empty input.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Table is the decoder output: a header row plus data rows, all literal text.
// Rows are padded to the header width; fully blank rows are already dropped.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Decode parses raw upload bytes according to the declared file extension.
//
// Accepted extensions are ".csv" and ".xlsx" (case-insensitive); anything
// else fails with ErrInvalidFormat. Zero-length input fails with ErrEmptyFile.
func Decode(data []byte, ext string) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".csv":
		if len(bytes.TrimSpace(data)) == 0 {
			return Table{}, ErrEmptyFile
		}
		return decodeCSV(data)
	case ".xlsx":
		if len(data) == 0 {
			return Table{}, ErrEmptyFile
		}
		return decodeXLSX(data)
	default:
		return Table{}, ErrInvalidFormat
	}
}

// decodeText converts raw bytes to a string, tolerating a UTF-8 BOM and
// falling back to Latin-1 when the bytes are not valid UTF-8. Decoding is
// best-effort and never fails: Latin-1 maps every byte to a rune.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// Unreachable in practice; keep the raw bytes rather than raising.
		return string(data)
	}
	return string(out)
}

// sniffDelimiter picks the CSV delimiter by counting candidate separators
// (comma, semicolon, tab) outside quoted sections on the first parsed lines.
// Ties resolve toward comma.
func sniffDelimiter(text string) rune {
	candidates := []rune{',', ';', '\t'}
	counts := map[rune]int{}

	lines := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		inQuotes := false
		for _, r := range line {
			if r == '"' {
				inQuotes = !inQuotes
				continue
			}
			if inQuotes {
				continue
			}
			for _, c := range candidates {
				if r == c {
					counts[c]++
				}
			}
		}
		lines++
		if lines >= 10 {
			break
		}
	}

	best := ','
	bestN := counts[',']
	for _, c := range candidates[1:] {
		if counts[c] > bestN {
			best = c
			bestN = counts[c]
		}
	}
	return best
}

func decodeCSV(data []byte) (Table, error) {
	text := decodeText(data)

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1 // ragged rows are padded below
	r.LazyQuotes = true

	var headers []string
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("ler csv: %w", err)
		}
		if headers == nil {
			headers = rec
			continue
		}
		rows = append(rows, rec)
	}
	if headers == nil {
		return Table{}, ErrEmptyDataset
	}

	return buildTable(headers, rows), nil
}

func decodeXLSX(data []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, fmt.Errorf("abrir xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyDataset
	}

	// Only the first worksheet is ingested. GetRows renders each cell with
	// its formatted text, so numeric cells keep their exact representation.
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("ler planilha %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return Table{}, ErrEmptyDataset
	}

	return buildTable(rows[0], rows[1:]), nil
}

// buildTable aligns rows to a uniform width and drops fully blank rows.
//
// If a data row is wider than the header row the table grows: the extra
// columns get empty header names here and positional "Coluna N" names during
// normalization. Shorter rows are padded with empty strings.
func buildTable(headers []string, raw [][]string) Table {
	width := len(headers)
	for _, row := range raw {
		if len(row) > width {
			width = len(row)
		}
	}
	for len(headers) < width {
		headers = append(headers, "")
	}

	rows := make([][]string, 0, len(raw))
	for _, row := range raw {
		if isBlankRow(row) {
			continue
		}
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		rows = append(rows, row)
	}

	return Table{Headers: headers, Rows: rows}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
