// Package tabular reads and writes the delimited tables exchanged with
// spreadsheet software. Input may carry a UTF-8 byte-order mark; output
// always does, so locale-dependent readers detect the encoding.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/er-ddx-review-server/internal/domain"
)

// CSVReader parses comma- or tab-separated uploads. Every cell is text and
// rows may be ragged.
type CSVReader struct {
	Comma rune
}

// NewCSVReader creates a comma-separated reader
func NewCSVReader() *CSVReader {
	return &CSVReader{Comma: ','}
}

// ReaderForFilename picks the delimiter from a file extension
func ReaderForFilename(name string) *CSVReader {
	r := NewCSVReader()
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		r.Comma = '\t'
	}
	return r
}

// Read implements domain.TableReader. A file with no header row, a header of
// blank cells, or one the csv decoder rejects is an upload-level failure.
func (c *CSVReader) Read(r io.Reader) (*domain.RawTable, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	if c.Comma != 0 {
		reader.Comma = c.Comma
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, uploadError("table could not be parsed", err)
	}
	if len(rows) == 0 {
		return nil, uploadError("table is empty", errors.New("no header row"))
	}

	header := make([]string, len(rows[0]))
	blank := true
	for i, cell := range rows[0] {
		header[i] = cleanHeader(cell)
		if header[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, uploadError("table has no header", errors.New("every header cell is blank"))
	}
	return &domain.RawTable{Header: header, Rows: rows[1:]}, nil
}

// WriteCSV writes a header and rows as UTF-8 with a byte-order mark
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	bw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bw)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

func cleanHeader(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}

func uploadError(message string, cause error) error {
	return domain.NewServiceError(domain.ErrUploadParse, message, cause.Error())
}
