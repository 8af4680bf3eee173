package billing

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
)

const csvHeader = "name,governmentId,email,debtAmount,debtDueDate,debtId\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustRowReader(t *testing.T, content string) *RowReader {
	t.Helper()
	rows, err := NewRowReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("row reader: %v", err)
	}
	return rows
}

func TestWriter_PersistsPendingRecords(t *testing.T) {
	repo := newFakeRepository()
	w := NewWriter(repo, testLogger())
	fileID := uuid.New()

	content := csvHeader +
		"Test,123456789,email@email.com,10.00,2021-01-01,123e4567-e89b-12d3-a456-426614174000\n"

	report, err := w.Write(context.Background(), fileID, mustRowReader(t, content))
	if err != nil {
		t.Fatalf("write: unexpected error: %v", err)
	}

	if report.Attempted != 1 || report.Inserted != 1 || report.Skipped != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.RowErrors) != 0 {
		t.Fatalf("expected no row errors, got %v", report.RowErrors)
	}

	debtID := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	rec, ok := repo.recordByDebtID(debtID)
	if !ok {
		t.Fatal("record not persisted")
	}
	if rec.Status != StatusPending {
		t.Fatalf("expected status %s got %s", StatusPending, rec.Status)
	}
	if rec.FileID != fileID {
		t.Fatalf("record not bound to file: got %s want %s", rec.FileID, fileID)
	}
	if got := rec.DebtAmount.StringFixed(2); got != "10.00" {
		t.Fatalf("expected amount 10.00 got %s", got)
	}
}

func TestWriter_MalformedRowDoesNotAbortBatch(t *testing.T) {
	repo := newFakeRepository()
	w := NewWriter(repo, testLogger())

	content := csvHeader +
		"Alice,1,alice@example.com,10.00,2021-01-01," + uuid.NewString() + "\n" +
		"Bob,2,bob@example.com,not-a-number,2021-01-01," + uuid.NewString() + "\n" +
		"Carol,3,carol@example.com,30.50,2021-02-01," + uuid.NewString() + "\n"

	report, err := w.Write(context.Background(), uuid.New(), mustRowReader(t, content))
	if err != nil {
		t.Fatalf("write: unexpected error: %v", err)
	}

	if report.Attempted != 3 {
		t.Fatalf("expected 3 attempted got %d", report.Attempted)
	}
	if report.Inserted != 2 {
		t.Fatalf("expected 2 inserted got %d", report.Inserted)
	}
	if len(report.RowErrors) != 1 {
		t.Fatalf("expected 1 row error got %d", len(report.RowErrors))
	}
	if report.RowErrors[0].Field != colDebtAmount {
		t.Fatalf("expected error on %s got %s", colDebtAmount, report.RowErrors[0].Field)
	}
	if report.RowErrors[0].Line != 3 {
		t.Fatalf("expected error on line 3 got %d", report.RowErrors[0].Line)
	}
}

func TestWriter_FieldCoercionErrors(t *testing.T) {
	cases := []struct {
		name  string
		row   string
		field string
	}{
		{"bad date", "A,1,a@example.com,10.00,01/01/2021," + uuid.NewString(), colDebtDueDate},
		{"bad debt id", "A,1,a@example.com,10.00,2021-01-01,not-a-uuid", colDebtID},
		{"bad email", "A,1,not-an-email,10.00,2021-01-01," + uuid.NewString(), "record"},
		{"missing name", ",1,a@example.com,10.00,2021-01-01," + uuid.NewString(), "record"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepository()
			w := NewWriter(repo, testLogger())

			report, err := w.Write(context.Background(), uuid.New(), mustRowReader(t, csvHeader+tc.row+"\n"))
			if err != nil {
				t.Fatalf("write: unexpected error: %v", err)
			}
			if report.Inserted != 0 {
				t.Fatalf("expected nothing inserted, got %d", report.Inserted)
			}
			if len(report.RowErrors) != 1 {
				t.Fatalf("expected 1 row error got %d", len(report.RowErrors))
			}
			if report.RowErrors[0].Field != tc.field {
				t.Fatalf("expected error field %s got %s", tc.field, report.RowErrors[0].Field)
			}
		})
	}
}

func TestWriter_DuplicateDebtIDSkippedSilently(t *testing.T) {
	repo := newFakeRepository()
	w := NewWriter(repo, testLogger())
	debtID := uuid.NewString()

	content := csvHeader +
		"Alice,1,alice@example.com,10.00,2021-01-01," + debtID + "\n" +
		"Alice,1,alice@example.com,10.00,2021-01-01," + debtID + "\n"

	report, err := w.Write(context.Background(), uuid.New(), mustRowReader(t, content))
	if err != nil {
		t.Fatalf("write: unexpected error: %v", err)
	}

	if report.Inserted != 1 {
		t.Fatalf("expected 1 inserted got %d", report.Inserted)
	}
	if report.Skipped != 1 {
		t.Fatalf("expected 1 skipped got %d", report.Skipped)
	}
	if len(report.RowErrors) != 0 {
		t.Fatalf("duplicates must not surface as errors, got %v", report.RowErrors)
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected exactly 1 stored record got %d", len(repo.records))
	}
}

func TestWriter_ChunksLargeBatches(t *testing.T) {
	repo := newFakeRepository()
	w := NewWriter(repo, testLogger())
	w.batchSize = 10

	var sb strings.Builder
	sb.WriteString(csvHeader)
	for i := 0; i < 25; i++ {
		sb.WriteString("N,1,n@example.com,5.00,2021-01-01," + uuid.NewString() + "\n")
	}

	report, err := w.Write(context.Background(), uuid.New(), mustRowReader(t, sb.String()))
	if err != nil {
		t.Fatalf("write: unexpected error: %v", err)
	}
	if report.Inserted != 25 {
		t.Fatalf("expected 25 inserted got %d", report.Inserted)
	}
}
