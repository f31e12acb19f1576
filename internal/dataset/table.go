// Package dataset loads labelled applicant data from CSV or XLSX files and
// produces the reproducible train/validation split used by training.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Table is a header row plus data rows, every row padded to the header width.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Load reads a .csv or .xlsx file. A missing file is ErrDataFileNotFound.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrDataFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes payload according to the extension of name.
func Parse(name string, payload []byte) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", "":
		records, err = readCSV(payload)
	case ".xlsx":
		records, err = readExcel(payload)
	default:
		return nil, fmt.Errorf("unsupported data file format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return newTable(records)
}

func readCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1
	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func readExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

// newTable takes the first non-blank row as the header and drops blank rows.
func newTable(records [][]string) (*Table, error) {
	t := &Table{index: make(map[string]int)}
	for _, row := range records {
		if blank(row) {
			continue
		}
		if t.Header == nil {
			t.Header = make([]string, len(row))
			for i, cell := range row {
				name := strings.TrimSpace(cell)
				if _, dup := t.index[name]; dup {
					return nil, fmt.Errorf("duplicate column %q in header", name)
				}
				t.Header[i] = name
				t.index[name] = i
			}
			continue
		}
		t.Rows = append(t.Rows, pad(row, len(t.Header)))
	}
	if t.Header == nil {
		return nil, errors.New("no rows found in file")
	}
	return t, nil
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the raw cells of one column.
func (t *Table) Column(name string) ([]string, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out, true
}

// Fields returns row i keyed by column name.
func (t *Table) Fields(i int) map[string]string {
	cells := make(map[string]string, len(t.Header))
	for j, name := range t.Header {
		cells[name] = t.Rows[i][j]
	}
	return cells
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func pad(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
