package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"billingflow/billing"
	"billingflow/storage"
)

const (
	maxUploadBytes   = 64 << 20
	defaultListLimit = 100
)

// FileSaver places validated upload bytes and returns the stored path.
type FileSaver interface {
	Save(originalName string, content io.Reader) (string, error)
}

// Enqueuer schedules a background pending sweep after ingestion.
type Enqueuer interface {
	EnqueueProcessPending(ctx context.Context, fileID uuid.UUID) error
}

// Pinger reports storage-layer liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler maps transport concerns onto the billing core.
type Handler struct {
	svc       *billing.Service
	store     FileSaver
	enqueuer  Enqueuer
	db        Pinger
	documents billing.Collaborator
	notifier  billing.Collaborator
	logger    *slog.Logger
}

// New builds the transport handler. enqueuer and db may be nil in test
// setups.
func New(svc *billing.Service, store FileSaver, enqueuer Enqueuer, db Pinger, documents, notifier billing.Collaborator, logger *slog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		store:     store,
		enqueuer:  enqueuer,
		db:        db,
		documents: documents,
		notifier:  notifier,
		logger:    logger,
	}
}

// envelope is the default API response shape.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type uploadData struct {
	FileID       string `json:"fileId"`
	Attempted    int    `json:"attempted"`
	Inserted     int    `json:"inserted"`
	Skipped      int    `json:"skipped"`
	RowErrors    int    `json:"rowErrors"`
	Processed    int    `json:"processed"`
	Transitioned int64  `json:"transitioned"`
}

type recordView struct {
	ID           string `json:"id"`
	FileID       string `json:"fileId"`
	Name         string `json:"name"`
	GovernmentID string `json:"governmentId"`
	Email        string `json:"email"`
	DebtAmount   string `json:"debtAmount"`
	DebtDueDate  string `json:"debtDueDate"`
	DebtID       string `json:"debtId"`
	Status       string `json:"status"`
}

// UploadFile receives a multipart CSV, stores it, and runs the full pipeline
// synchronously. Non-CSV uploads are rejected here, before the core is
// touched.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid multipart request"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "missing file field"})
		return
	}
	defer file.Close()

	path, err := h.store.Save(header.Filename, file)
	if err != nil {
		if errors.Is(err, storage.ErrExtension) {
			writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "file received with error", Data: err.Error()})
			return
		}
		h.logger.Error("store upload", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, envelope{Status: http.StatusInternalServerError, Message: "failed to store upload"})
		return
	}

	ctx := r.Context()
	fileID, err := h.svc.IngestFile(ctx, path)
	if err != nil {
		h.logger.Error("ingest file", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, envelope{Status: http.StatusInternalServerError, Message: "failed to ingest file"})
		return
	}

	result, err := h.svc.ProcessUploadedFile(ctx, fileID)
	if err != nil {
		h.logger.Error("process file", slog.String("file_id", fileID.String()), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, envelope{Status: http.StatusInternalServerError, Message: "failed to process file"})
		return
	}

	if h.enqueuer != nil {
		// The sweep is best-effort; the inline pass already ran.
		if err := h.enqueuer.EnqueueProcessPending(ctx, fileID); err != nil {
			h.logger.Warn("enqueue pending sweep", slog.Any("error", err))
		}
	}

	writeJSON(w, http.StatusCreated, envelope{
		Status:  http.StatusCreated,
		Message: "file received",
		Data: uploadData{
			FileID:       fileID.String(),
			Attempted:    result.Write.Attempted,
			Inserted:     result.Write.Inserted,
			Skipped:      result.Write.Skipped,
			RowErrors:    len(result.Write.RowErrors),
			Processed:    result.Pass.Processed,
			Transitioned: result.Pass.Transitioned,
		},
	})
}

// ListBillings returns stored records, optionally filtered by status.
func (h *Handler) ListBillings(w http.ResponseWriter, r *http.Request) {
	var sel billing.Selector
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := billing.ParseStatus(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: err.Error()})
			return
		}
		sel.Status = status
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := h.svc.ListRecords(r.Context(), sel, limit)
	if err != nil {
		h.logger.Error("list billings", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, envelope{Status: http.StatusInternalServerError, Message: "failed to list billings"})
		return
	}

	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, recordView{
			ID:           rec.ID.String(),
			FileID:       rec.FileID.String(),
			Name:         rec.Name,
			GovernmentID: rec.GovernmentID,
			Email:        rec.Email,
			DebtAmount:   rec.DebtAmount.StringFixed(2),
			DebtDueDate:  rec.DebtDueDate.Format("2006-01-02"),
			DebtID:       rec.DebtID.String(),
			Status:       string(rec.Status),
		})
	}

	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "ok", Data: views})
}

// Health reports database and collaborator liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	health := map[string]bool{
		"database":     h.db != nil && h.db.Ping(ctx) == nil,
		"document":     h.documents != nil && h.documents.HealthCheck(ctx),
		"notification": h.notifier != nil && h.notifier.HealthCheck(ctx),
	}

	code := http.StatusOK
	if !health["database"] {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, envelope{Status: code, Message: "health", Data: health})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
