package billing

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Expected header columns. Unknown columns are ignored, missing columns map
// to empty fields.
const (
	colName         = "name"
	colGovernmentID = "governmentId"
	colEmail        = "email"
	colDebtAmount   = "debtAmount"
	colDebtDueDate  = "debtDueDate"
	colDebtID       = "debtId"
)

// RawRow is one tabular row keyed by the upload header. Fields hold the raw
// text exactly as uploaded: content validation happens at the persistence
// boundary, not here.
type RawRow struct {
	Name         string
	GovernmentID string
	Email        string
	DebtAmount   string
	DebtDueDate  string
	DebtID       string
}

// RowReader streams candidate rows out of an uploaded tabular file one at a
// time, so large files never need to be materialized in memory.
type RowReader struct {
	r     *csv.Reader
	index map[string]int
	line  int
}

// NewRowReader reads the header row and prepares a streaming reader over the
// remaining rows. An unreadable header is fatal for the whole upload.
func NewRowReader(r io.Reader) (*RowReader, error) {
	cr := csv.NewReader(r)
	// Rows may be ragged; absent trailing columns become empty values.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("billing: read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}

	return &RowReader{r: cr, index: index, line: 1}, nil
}

// Next returns the next row, or io.EOF when the file is exhausted. A
// *csv.ParseError scopes to the offending line and leaves the reader usable.
func (r *RowReader) Next() (RawRow, error) {
	record, err := r.r.Read()
	r.line++
	if err != nil {
		return RawRow{}, err
	}

	field := func(name string) string {
		i, ok := r.index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	return RawRow{
		Name:         field(colName),
		GovernmentID: field(colGovernmentID),
		Email:        field(colEmail),
		DebtAmount:   field(colDebtAmount),
		DebtDueDate:  field(colDebtDueDate),
		DebtID:       field(colDebtID),
	}, nil
}

// Line reports the 1-based line number of the row most recently returned by
// Next, for row-scoped error logs.
func (r *RowReader) Line() int {
	return r.line
}
