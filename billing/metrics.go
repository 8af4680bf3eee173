package billing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billingflow_rows_inserted_total",
		Help: "Billing records persisted by the conflict-tolerant writer.",
	})
	rowsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billingflow_rows_skipped_total",
		Help: "Rows dropped because their debt identifier already existed.",
	})
	rowsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billingflow_rows_malformed_total",
		Help: "Rows excluded from a batch because a field could not be coerced.",
	})
	collaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billingflow_collaborator_failures_total",
		Help: "Collaborator executions that reported failure, by collaborator.",
	}, []string{"collaborator"})
	recordsTransitioned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billingflow_records_transitioned_total",
		Help: "Records moved to a terminal status by workflow passes.",
	})
)
