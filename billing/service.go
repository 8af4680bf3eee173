package billing

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// FileStore opens previously stored upload content. Path management and
// extension validation are the transport layer's concern; by the time the
// core sees a path it is expected to reference readable CSV bytes.
type FileStore interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ProcessResult bundles the ingestion report with the workflow pass that
// followed it.
type ProcessResult struct {
	Write WriteReport
	Pass  PassResult
}

// Service composes Parser -> Writer -> Engine for one uploaded file.
type Service struct {
	repo   Repository
	writer *Writer
	engine *Engine
	files  FileStore
	logger *slog.Logger
}

// NewService builds the ingestion orchestrator.
func NewService(repo Repository, writer *Writer, engine *Engine, files FileStore, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		writer: writer,
		engine: engine,
		files:  files,
		logger: logger,
	}
}

// IngestFile records an uploaded artifact. Precondition: the transport layer
// has validated the .csv extension and persisted the bytes at storedPath.
func (s *Service) IngestFile(ctx context.Context, storedPath string) (uuid.UUID, error) {
	if storedPath == "" {
		return uuid.Nil, fmt.Errorf("billing: empty stored path")
	}
	file, err := s.repo.CreateFile(ctx, storedPath)
	if err != nil {
		return uuid.Nil, err
	}
	return file.ID, nil
}

// ProcessUploadedFile runs the full pipeline for one file: stream-parse the
// stored content, bulk-persist the rows, then advance the file's pending
// records through one workflow pass. An invalid file reference or unreadable
// stream is fatal; no partial processing is attempted.
func (s *Service) ProcessUploadedFile(ctx context.Context, fileID uuid.UUID) (ProcessResult, error) {
	file, err := s.repo.GetFile(ctx, fileID)
	if err != nil {
		return ProcessResult{}, err
	}

	content, err := s.files.Open(ctx, file.Path)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("billing: open stored file %s: %w", file.Path, err)
	}
	defer content.Close()

	rows, err := NewRowReader(content)
	if err != nil {
		return ProcessResult{}, err
	}

	report, err := s.writer.Write(ctx, fileID, rows)
	if err != nil {
		return ProcessResult{Write: report}, err
	}

	pass, err := s.engine.RunPass(ctx, Selector{FileID: fileID, Status: StatusPending})
	if err != nil {
		return ProcessResult{Write: report}, err
	}

	s.logger.Info("file processed",
		slog.String("file_id", fileID.String()),
		slog.Int("attempted", report.Attempted),
		slog.Int("inserted", report.Inserted),
		slog.Int("skipped", report.Skipped),
		slog.Int("malformed", len(report.RowErrors)),
		slog.Int("pass_processed", pass.Processed),
		slog.Int64("transitioned", pass.Transitioned))

	return ProcessResult{Write: report, Pass: pass}, nil
}

// ListRecords exposes stored records to the transport layer.
func (s *Service) ListRecords(ctx context.Context, sel Selector, limit int) ([]Record, error) {
	return s.repo.ListBySelector(ctx, sel, limit)
}
