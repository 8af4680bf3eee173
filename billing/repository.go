package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrFileNotFound signals that the referenced source file does not exist.
	ErrFileNotFound = errors.New("billing: source file not found")
	// ErrDuplicatePath signals that a source file with the same storage path
	// was already registered.
	ErrDuplicatePath = errors.New("billing: source file path already exists")
)

// Repository handles data access for source files and billing records.
type Repository interface {
	CreateFile(ctx context.Context, path string) (SourceFile, error)
	GetFile(ctx context.Context, id uuid.UUID) (SourceFile, error)
	InsertRecords(ctx context.Context, recs []Record) (int, error)
	ListBySelector(ctx context.Context, sel Selector, limit int) ([]Record, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status Status) (int64, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed billing repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateFile registers an uploaded artifact by its storage path.
func (r *PGRepository) CreateFile(ctx context.Context, path string) (SourceFile, error) {
	const insertSQL = `
		INSERT INTO source_files (path)
		VALUES ($1)
		RETURNING id, path, created_at
	`

	var file SourceFile
	err := r.pool.QueryRow(ctx, insertSQL, path).Scan(&file.ID, &file.Path, &file.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return SourceFile{}, ErrDuplicatePath
		}
		return SourceFile{}, fmt.Errorf("billing: create file: %w", err)
	}
	return file, nil
}

// GetFile retrieves a source file by identifier.
func (r *PGRepository) GetFile(ctx context.Context, id uuid.UUID) (SourceFile, error) {
	const selectSQL = `
		SELECT id, path, created_at
		FROM source_files
		WHERE id = $1
	`

	var file SourceFile
	err := r.pool.QueryRow(ctx, selectSQL, id).Scan(&file.ID, &file.Path, &file.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SourceFile{}, ErrFileNotFound
		}
		return SourceFile{}, fmt.Errorf("billing: get file: %w", err)
	}
	return file, nil
}

// InsertRecords bulk-persists candidate records in one batch pipeline. Rows
// whose debt identifier already exists are silently skipped, which makes
// re-ingestion of partially processed files safe. Returns the number of rows
// actually inserted.
func (r *PGRepository) InsertRecords(ctx context.Context, recs []Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	const insertSQL = `
		INSERT INTO billing_records
			(file_id, name, government_id, email, debt_amount, debt_due_date, debt_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (debt_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, rec := range recs {
		status := rec.Status
		if status == "" {
			status = StatusPending
		}
		batch.Queue(insertSQL,
			rec.FileID,
			rec.Name,
			rec.GovernmentID,
			rec.Email,
			rec.DebtAmount.StringFixed(2),
			rec.DebtDueDate,
			rec.DebtID,
			status,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	inserted := 0
	for range recs {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return inserted, fmt.Errorf("billing: bulk insert: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return inserted, fmt.Errorf("billing: close insert batch: %w", err)
	}
	return inserted, nil
}

// ListBySelector loads records matching the selector. Scan order carries no
// meaning for callers; records are processed independently.
func (r *PGRepository) ListBySelector(ctx context.Context, sel Selector, limit int) ([]Record, error) {
	query := `
		SELECT id, file_id, name, government_id, email, debt_amount::text,
		       debt_due_date, debt_id, status::text, created_at, updated_at
		FROM billing_records
	`
	var (
		args  []any
		where []string
	)
	if sel.Status != "" {
		args = append(args, sel.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if sel.FileID != uuid.Nil {
		args = append(args, sel.FileID)
		where = append(where, fmt.Sprintf("file_id = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("billing: list records: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 64)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("billing: iterate records: %w", err)
	}
	return out, nil
}

// UpdateStatus performs one bulk transition of the given records. The enum
// comparison keeps statuses monotonic: rows already at or past the target are
// left untouched. Returns the number of rows transitioned.
func (r *PGRepository) UpdateStatus(ctx context.Context, ids []uuid.UUID, status Status) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	const updateSQL = `
		UPDATE billing_records
		SET status = $1::billing_status,
		    updated_at = now()
		WHERE id = ANY($2)
		  AND status < $1::billing_status
	`

	tag, err := r.pool.Exec(ctx, updateSQL, status, ids)
	if err != nil {
		return 0, fmt.Errorf("billing: bulk status update: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		amount string
		status string
	)
	if err := row.Scan(&rec.ID, &rec.FileID, &rec.Name, &rec.GovernmentID, &rec.Email,
		&amount, &rec.DebtDueDate, &rec.DebtID, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, fmt.Errorf("billing: scan record: %w", err)
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Record{}, fmt.Errorf("billing: parse stored amount %q: %w", amount, err)
	}
	rec.DebtAmount = parsed
	rec.Status = Status(status)
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
