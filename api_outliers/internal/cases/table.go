package cases

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Column names expected in an uploaded case export.
const (
	ColCaseID         = "Case ID"
	ColCaseURL        = "Case Url"
	ColAgentLogin     = "agent_login"
	ColOpsSite        = "ops_site"
	ColTotalTime      = "total_time"
	ColStatusCode     = "beginning_status_code"
	ColStartDate      = "start_date"
	ColResolutionDate = "case_resolution_cal_date"
)

// RequiredColumns must be present for a table to be processed.
var RequiredColumns = []string{
	ColCaseID,
	ColCaseURL,
	ColAgentLogin,
	ColOpsSite,
	ColTotalTime,
	ColStatusCode,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one data row keyed by column name. Line is the 1-based source line.
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the raw value of column, or "" when the column is absent.
func (r Row) Get(column string) string {
	return r.Fields[column]
}

type Table struct {
	Header []string
	Rows   []Row
}

// Load parses a CSV document with a header row.
func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Line: 1, Err: errNoColumns}
	}
	if !utf8.Valid(data) {
		return nil, &ParseError{Line: invalidUTF8Line(data), Err: errInvalidEncoding}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, wrapCSVError(err)
	}
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
	}

	table := &Table{Header: header, Rows: []Row{}}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapCSVError(err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) > len(header) {
			return nil, &ParseError{Line: line, Err: csv.ErrFieldCount}
		}
		// Short rows leave their trailing columns empty.
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				fields[name] = record[i]
			} else {
				fields[name] = ""
			}
		}
		table.Rows = append(table.Rows, Row{Line: line, Fields: fields})
	}
	return table, nil
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

// Require returns a *SchemaError listing every column not present in the header.
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, col := range columns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

func wrapCSVError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Err: csvErr.Err}
	}
	return &ParseError{Line: 1, Err: err}
}

func invalidUTF8Line(data []byte) int {
	line := 1
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			return line
		}
		if r == '\n' {
			line++
		}
		data = data[size:]
	}
	return line
}
