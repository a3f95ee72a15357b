package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for ledger-level observability.
// Per-organization series carry an organization_id label.
type BusinessMetrics struct {
	// Numbering
	NumbersAllocated *prometheus.CounterVec
	TxRetries        *prometheus.CounterVec

	// Documents
	DocumentsSent      *prometheus.CounterVec
	DocumentsCancelled *prometheus.CounterVec
	QuotesSigned       *prometheus.CounterVec

	// Reconciliation
	ReconcileOutcomes *prometheus.CounterVec
	RevenueCollected  *prometheus.CounterVec

	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookFailed   *prometheus.CounterVec
	WebhookLatency  *prometheus.HistogramVec

	// Collection
	InvoicesOverdue     *prometheus.CounterVec
	RemindersDispatched *prometheus.CounterVec
	RemindersSkipped    *prometheus.CounterVec

	// Notifications
	NotificationFailures *prometheus.CounterVec

	// Background jobs
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// External API performance
	StripeAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates the metrics and registers them with reg. A nil
// reg registers with the default registry.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "comptoir"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	subsystem := "business"
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &BusinessMetrics{
		NumbersAllocated: counter("numbers_allocated_total", "Document numbers issued", "organization_id", "document_type"),
		TxRetries:        counter("tx_retries_total", "Transactions replayed after a transient conflict", "reason"),

		DocumentsSent:      counter("documents_sent_total", "Documents moved from draft to sent", "organization_id", "document_type"),
		DocumentsCancelled: counter("documents_cancelled_total", "Documents cancelled", "organization_id", "document_type"),
		QuotesSigned:       counter("quotes_signed_total", "Quotes accepted through the public signature flow", "organization_id"),

		ReconcileOutcomes: counter("reconcile_outcomes_total", "Payment confirmations by outcome", "organization_id", "source", "outcome"), // outcome: applied, already_paid, duplicate_reference, not_paid, error
		RevenueCollected:  counter("revenue_collected_cents_total", "Payments applied to invoices, in minor units", "organization_id", "currency"),

		WebhookReceived: counter("webhook_received_total", "Payment processor webhooks received", "event_type"),
		WebhookFailed:   counter("webhook_failed_total", "Payment processor webhooks rejected or failed", "reason"),
		WebhookLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_duration_seconds",
			Help:      "Webhook handling time",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5},
		}, []string{"event_type"}),

		InvoicesOverdue:     counter("invoices_overdue_total", "Invoices moved to overdue by the sweep", "organization_id"),
		RemindersDispatched: counter("reminders_dispatched_total", "Payment reminders handed to a channel", "organization_id", "channel"),
		RemindersSkipped:    counter("reminders_skipped_total", "Reminder steps skipped", "reason"), // reason: paid, cancelled, deleted, replay, no_address

		NotificationFailures: counter("notification_failures_total", "Notification inserts that failed and were queued for retry", "type"),

		JobsEnqueued:  counter("jobs_enqueued_total", "Background jobs enqueued", "job_type"),
		JobsProcessed: counter("jobs_processed_total", "Background jobs completed", "job_type"),
		JobsFailed:    counter("jobs_failed_total", "Background job attempts that failed", "job_type"),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_duration_seconds",
			Help:      "Background job processing time",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		}, []string{"job_type"}),

		StripeAPILatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stripe_api_duration_seconds",
			Help:      "Stripe API call duration",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}), // operation: create_checkout_session, get_checkout_session
	}
}

// Global instance for easy access from services and handlers. The Record
// helpers below are no-ops while it is nil, so tests need no setup.
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, nil)
	return Business
}

func (m *BusinessMetrics) RecordTxRetry(reason string) {
	if m == nil {
		return
	}
	m.TxRetries.WithLabelValues(reason).Inc()
}

func (m *BusinessMetrics) RecordNumberAllocated(orgID, docType string) {
	if m == nil {
		return
	}
	m.NumbersAllocated.WithLabelValues(orgID, docType).Inc()
}

func (m *BusinessMetrics) RecordDocumentSent(orgID, docType string) {
	if m == nil {
		return
	}
	m.DocumentsSent.WithLabelValues(orgID, docType).Inc()
}

func (m *BusinessMetrics) RecordDocumentCancelled(orgID, docType string) {
	if m == nil {
		return
	}
	m.DocumentsCancelled.WithLabelValues(orgID, docType).Inc()
}

func (m *BusinessMetrics) RecordQuoteSigned(orgID string) {
	if m == nil {
		return
	}
	m.QuotesSigned.WithLabelValues(orgID).Inc()
}

// RecordReconcile counts one reconcile outcome. Applied payments also add to
// the revenue counter.
func (m *BusinessMetrics) RecordReconcile(orgID, source, outcome, currency string, amountCents int64) {
	if m == nil {
		return
	}
	m.ReconcileOutcomes.WithLabelValues(orgID, source, outcome).Inc()
	if outcome == "applied" && amountCents > 0 {
		m.RevenueCollected.WithLabelValues(orgID, currency).Add(float64(amountCents))
	}
}

func (m *BusinessMetrics) RecordWebhook(eventType string, started time.Time) {
	if m == nil {
		return
	}
	m.WebhookReceived.WithLabelValues(eventType).Inc()
	m.WebhookLatency.WithLabelValues(eventType).Observe(time.Since(started).Seconds())
}

func (m *BusinessMetrics) RecordWebhookFailure(reason string) {
	if m == nil {
		return
	}
	m.WebhookFailed.WithLabelValues(reason).Inc()
}

func (m *BusinessMetrics) RecordInvoiceOverdue(orgID string) {
	if m == nil {
		return
	}
	m.InvoicesOverdue.WithLabelValues(orgID).Inc()
}

func (m *BusinessMetrics) RecordReminderDispatched(orgID, channel string) {
	if m == nil {
		return
	}
	m.RemindersDispatched.WithLabelValues(orgID, channel).Inc()
}

func (m *BusinessMetrics) RecordReminderSkipped(reason string) {
	if m == nil {
		return
	}
	m.RemindersSkipped.WithLabelValues(reason).Inc()
}

func (m *BusinessMetrics) RecordNotificationFailure(notificationType string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(notificationType).Inc()
}

func (m *BusinessMetrics) RecordJobEnqueued(jobType string) {
	if m == nil {
		return
	}
	m.JobsEnqueued.WithLabelValues(jobType).Inc()
}

// RecordJob counts a finished job attempt and its duration.
func (m *BusinessMetrics) RecordJob(jobType string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.JobDuration.WithLabelValues(jobType).Observe(d.Seconds())
	if err != nil {
		m.JobsFailed.WithLabelValues(jobType).Inc()
		return
	}
	m.JobsProcessed.WithLabelValues(jobType).Inc()
}

func (m *BusinessMetrics) ObserveStripeCall(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.StripeAPILatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
