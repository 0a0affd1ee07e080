package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"adminportal/requests/internal/model"
)

// Metrics methods are safe on a nil receiver so callers never need to check
// whether instrumentation was configured.
type Metrics struct {
	RequestsCreated        *prometheus.CounterVec
	RequestTransitions     *prometheus.CounterVec
	RequestsDeleted        prometheus.Counter
	DocumentsUploaded      prometheus.Counter
	DocumentUploadFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_requests_created_total",
			Help: "Requests created, by request type.",
		}, []string{"type"}),
		RequestTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_request_transitions_total",
			Help: "Request status changes, by source and target status.",
		}, []string{"from", "to"}),
		RequestsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_requests_deleted_total",
			Help: "Requests deleted together with their documents.",
		}),
		DocumentsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_documents_uploaded_total",
			Help: "Documents stored by successful upload batches.",
		}),
		DocumentUploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_document_upload_failures_total",
			Help: "Rejected upload batches, by error code.",
		}, []string{"code"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.RequestsCreated,
			m.RequestTransitions,
			m.RequestsDeleted,
			m.DocumentsUploaded,
			m.DocumentUploadFailures,
		)
	}
	return m
}

func (m *Metrics) RequestCreated(t model.RequestType) {
	if m == nil {
		return
	}
	m.RequestsCreated.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) Transitioned(from, to model.RequestStatus) {
	if m == nil {
		return
	}
	m.RequestTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) RequestDeleted() {
	if m == nil {
		return
	}
	m.RequestsDeleted.Inc()
}

func (m *Metrics) Uploaded(n int) {
	if m == nil {
		return
	}
	m.DocumentsUploaded.Add(float64(n))
}

func (m *Metrics) UploadFailed(code string) {
	if m == nil {
		return
	}
	m.DocumentUploadFailures.WithLabelValues(code).Inc()
}
