package billing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	dateLayout       = "2006-01-02"
	defaultBatchSize = 1000
)

// RowError describes a single row that could not be coerced into a billing
// record. It is row-local: the surrounding batch is unaffected.
type RowError struct {
	Line  int
	Field string
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// WriteReport aggregates per-row outcomes of one ingestion: how many rows
// were read, how many actually landed, how many were dropped as duplicates,
// and which rows were excluded as malformed.
type WriteReport struct {
	Attempted int
	Inserted  int
	Skipped   int
	RowErrors []RowError
}

// Writer bulk-persists candidate rows with conflict-ignore semantics on the
// debt identifier.
type Writer struct {
	repo      Repository
	validate  *validator.Validate
	logger    *slog.Logger
	batchSize int
}

// NewWriter builds a Writer using the provided repository.
func NewWriter(repo Repository, logger *slog.Logger) *Writer {
	return &Writer{
		repo:      repo,
		validate:  validator.New(),
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// Write drains the row stream, coerces each row into a PENDING record bound
// to fileID, and persists the survivors in chunked bulk inserts. A malformed
// row is excluded and logged, never aborting the batch; duplicate debt
// identifiers are silently skipped by storage.
func (w *Writer) Write(ctx context.Context, fileID uuid.UUID, rows *RowReader) (WriteReport, error) {
	var report WriteReport
	batch := make([]Record, 0, w.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := w.repo.InsertRecords(ctx, batch)
		report.Inserted += inserted
		report.Skipped += len(batch) - inserted
		batch = batch[:0]
		return err
	}

	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			rowErr := RowError{Line: rows.Line(), Field: "csv", Err: err}
			report.RowErrors = append(report.RowErrors, rowErr)
			rowsMalformed.Inc()
			w.logger.Warn("skipping unreadable row",
				slog.Int("line", rowErr.Line),
				slog.Any("error", err))
			continue
		}
		if err != nil {
			// The stream itself broke; this is fatal for the upload.
			return report, fmt.Errorf("billing: read row: %w", err)
		}

		report.Attempted++
		rec, rowErr := w.buildRecord(fileID, row, rows.Line())
		if rowErr != nil {
			report.RowErrors = append(report.RowErrors, *rowErr)
			rowsMalformed.Inc()
			w.logger.Warn("excluding malformed row",
				slog.Int("line", rowErr.Line),
				slog.String("field", rowErr.Field),
				slog.Any("error", rowErr.Err))
			continue
		}

		batch = append(batch, rec)
		if len(batch) >= w.batchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}

	if err := flush(); err != nil {
		return report, err
	}

	rowsInserted.Add(float64(report.Inserted))
	rowsSkipped.Add(float64(report.Skipped))
	return report, nil
}

func (w *Writer) buildRecord(fileID uuid.UUID, row RawRow, line int) (Record, *RowError) {
	amount, err := decimal.NewFromString(row.DebtAmount)
	if err != nil {
		return Record{}, &RowError{Line: line, Field: colDebtAmount, Err: err}
	}

	dueDate, err := time.Parse(dateLayout, row.DebtDueDate)
	if err != nil {
		return Record{}, &RowError{Line: line, Field: colDebtDueDate, Err: err}
	}

	debtID, err := uuid.Parse(row.DebtID)
	if err != nil {
		return Record{}, &RowError{Line: line, Field: colDebtID, Err: err}
	}

	rec := Record{
		FileID:       fileID,
		Name:         row.Name,
		GovernmentID: row.GovernmentID,
		Email:        row.Email,
		DebtAmount:   amount,
		DebtDueDate:  dueDate,
		DebtID:       debtID,
		Status:       StatusPending,
	}
	if err := w.validate.Struct(rec); err != nil {
		return Record{}, &RowError{Line: line, Field: "record", Err: err}
	}
	return rec, nil
}
