package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"billingflow/billing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeProcessPending sweeps records stuck in PENDING through a
	// workflow pass. It backstops crashes between ingestion and the inline
	// pass, and strict-advance records withheld from transition.
	TaskTypeProcessPending = "billing:process_pending"
)

// ProcessPendingPayload optionally scopes a sweep to one source file. An
// empty payload sweeps every pending record.
type ProcessPendingPayload struct {
	FileID string `json:"fileId,omitempty"`
}

// NewProcessPendingTask constructs an Asynq task.
func NewProcessPendingTask(payload ProcessPendingPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProcessPending, data), nil
}

// Handler processes billing background tasks.
type Handler struct {
	engine *billing.Engine
	logger *slog.Logger
}

// NewHandler wires the workflow engine into task handling.
func NewHandler(engine *billing.Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// HandleProcessPending runs one workflow pass over the selected records.
func (h *Handler) HandleProcessPending(ctx context.Context, t *asynq.Task) error {
	var payload ProcessPendingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	sel := billing.Selector{Status: billing.StatusPending}
	if payload.FileID != "" {
		fileID, err := uuid.Parse(payload.FileID)
		if err != nil {
			return asynq.SkipRetry
		}
		sel.FileID = fileID
	}

	result, err := h.engine.RunPass(ctx, sel)
	if err != nil {
		return err
	}

	h.logger.Info("pending sweep complete",
		slog.String("file_id", payload.FileID),
		slog.Int("processed", result.Processed),
		slog.Int64("transitioned", result.Transitioned))
	return nil
}

// Enqueuer submits billing tasks to the queue.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer over an Asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueProcessPending schedules a pending sweep, optionally scoped to one
// file.
func (e *Enqueuer) EnqueueProcessPending(ctx context.Context, fileID uuid.UUID) error {
	payload := ProcessPendingPayload{}
	if fileID != uuid.Nil {
		payload.FileID = fileID.String()
	}
	task, err := NewProcessPendingTask(payload)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases the underlying client.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
