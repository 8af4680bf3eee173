package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const defaultPassLimit = 5000

// Collaborator is the uniform contract for external side-effect services
// invoked per record. Execute must be safe to call more than once for the
// same record: the engine guarantees at-least-once attempts, never exactly
// once.
type Collaborator interface {
	HealthCheck(ctx context.Context) bool
	Execute(ctx context.Context, rec Record) bool
}

// RecordOutcome captures the per-record result of one pass, so callers can
// distinguish "fully succeeded" from "advanced despite partial failure".
type RecordOutcome struct {
	DocumentCreated  bool
	NotificationSent bool
}

// Succeeded reports whether both collaborator calls succeeded.
func (o RecordOutcome) Succeeded() bool {
	return o.DocumentCreated && o.NotificationSent
}

// PassResult summarizes one workflow pass.
type PassResult struct {
	Processed    int
	Transitioned int64
	// Outcomes is keyed by debt identifier.
	Outcomes map[uuid.UUID]RecordOutcome
}

// Engine drives selected records through the document and notification
// collaborators and performs a single bulk status transition at the end of
// the pass.
type Engine struct {
	repo      Repository
	documents Collaborator
	notifier  Collaborator
	logger    *slog.Logger
	strict    bool
	limit     int
}

// EngineOption customizes engine behavior.
type EngineOption func(*Engine)

// WithStrictAdvance withholds the terminal transition from records whose
// collaborator calls failed, instead of the default advance-regardless
// policy. Withheld records stay PENDING and are retried by the next pass.
func WithStrictAdvance() EngineOption {
	return func(e *Engine) { e.strict = true }
}

// WithPassLimit bounds how many records a single pass loads.
func WithPassLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// NewEngine builds a workflow engine with injected collaborators.
func NewEngine(repo Repository, documents, notifier Collaborator, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:      repo,
		documents: documents,
		notifier:  notifier,
		logger:    logger,
		limit:     defaultPassLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunPass loads the selected records, invokes both collaborators for each,
// and issues one bulk transition to NOTIFICATION_SENT. Collaborator failures
// are logged and surfaced in the result but do not stop the pass.
func (e *Engine) RunPass(ctx context.Context, sel Selector) (PassResult, error) {
	if sel.Status == "" {
		sel.Status = StatusPending
	}

	records, err := e.repo.ListBySelector(ctx, sel, e.limit)
	if err != nil {
		return PassResult{}, fmt.Errorf("billing: load pass selection: %w", err)
	}

	result := PassResult{Outcomes: make(map[uuid.UUID]RecordOutcome, len(records))}
	advance := make([]uuid.UUID, 0, len(records))

	for _, rec := range records {
		outcome := RecordOutcome{
			DocumentCreated:  e.execute(ctx, "document", e.documents, rec),
			NotificationSent: e.execute(ctx, "notification", e.notifier, rec),
		}
		result.Outcomes[rec.DebtID] = outcome
		result.Processed++

		if !e.strict || outcome.Succeeded() {
			advance = append(advance, rec.ID)
		}
	}

	if len(advance) > 0 {
		transitioned, err := e.repo.UpdateStatus(ctx, advance, StatusNotificationSent)
		if err != nil {
			return result, fmt.Errorf("billing: bulk transition: %w", err)
		}
		result.Transitioned = transitioned
		recordsTransitioned.Add(float64(transitioned))
	}

	return result, nil
}

func (e *Engine) execute(ctx context.Context, kind string, c Collaborator, rec Record) bool {
	e.logger.Info("executing collaborator",
		slog.String("collaborator", kind),
		slog.String("debt_id", rec.DebtID.String()))

	ok := c.Execute(ctx, rec)
	if !ok {
		collaboratorFailures.WithLabelValues(kind).Inc()
		e.logger.Warn("collaborator reported failure",
			slog.String("collaborator", kind),
			slog.String("debt_id", rec.DebtID.String()))
	}
	return ok
}
