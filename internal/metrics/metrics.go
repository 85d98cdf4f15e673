// Package metrics holds the Prometheus collectors shared by the server and
// the worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	workflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notra_workflow_runs_total",
			Help: "Workflow runs by workflow and terminal outcome",
		},
		[]string{"workflow", "outcome"},
	)

	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notra_workflow_step_duration_seconds",
			Help:    "Duration of executed (not replayed) workflow steps",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 180, 600},
		},
		[]string{"workflow", "step"},
	)

	creditOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notra_credit_operations_total",
			Help: "Credit ledger calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notra_agent_tool_calls_total",
			Help: "Agent tool invocations by tool and result",
		},
		[]string{"tool", "result"},
	)

	notificationEmails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notra_notification_emails_total",
			Help: "Content-created notification emails by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(workflowRuns, stepDuration, creditOperations, toolCalls, notificationEmails)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordRun(workflow, outcome string) {
	workflowRuns.WithLabelValues(workflow, outcome).Inc()
}

func ObserveStep(workflow, step string, d time.Duration) {
	stepDuration.WithLabelValues(workflow, step).Observe(d.Seconds())
}

func RecordCreditOperation(operation string, err error) {
	creditOperations.WithLabelValues(operation, result(err)).Inc()
}

func RecordToolCall(tool string, err error) {
	toolCalls.WithLabelValues(tool, result(err)).Inc()
}

func RecordNotification(err error) {
	notificationEmails.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
