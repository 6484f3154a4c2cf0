package server

import (
	"sync"
	"time"
)

// Metrics holds in-process counters for one server run.
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	requestsTotal        int64
	requestErrors4xx     int64
	requestErrors5xx     int64
	requestDurationTotal time.Duration
	droppedConnsTotal    int64
	authFailuresTotal    int64

	// File metrics
	uploadsTotal         int64
	uploadBytesTotal     int64
	uploadConflictsTotal int64
	updatesTotal         int64
	updateFailuresTotal  int64
	deletesTotal         int64
	downloadsTotal       int64
	downloadBytesTotal   int64

	// Dependency metrics
	mirrorErrorsTotal    int64
	auditErrorsTotal     int64
	externalChangesTotal int64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records one answered request
func (m *Metrics) RecordRequest(statusCode int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	m.requestDurationTotal += d

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// RecordDropped records a connection closed without a response.
func (m *Metrics) RecordDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedConnsTotal++
}

// RecordAuthFailure records a request rejected for a missing or wrong token.
func (m *Metrics) RecordAuthFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authFailuresTotal++
}

// RecordUpload records a file created by POST.
func (m *Metrics) RecordUpload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
}

// RecordUploadConflict records a POST refused because the name was taken.
func (m *Metrics) RecordUploadConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadConflictsTotal++
}

// RecordUpdate records the outcome of one PUT.
func (m *Metrics) RecordUpdate(updated, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatesTotal += int64(updated)
	m.updateFailuresTotal += int64(failed)
}

// RecordDelete records a removed file.
func (m *Metrics) RecordDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletesTotal++
}

// RecordDownload records a served download.
func (m *Metrics) RecordDownload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
}

// RecordMirrorError records a failed or rejected mirror call.
func (m *Metrics) RecordMirrorError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrorErrorsTotal++
}

// RecordAuditError records a failed or rejected audit insert.
func (m *Metrics) RecordAuditError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditErrorsTotal++
}

// RecordExternalChange records an event from the upload-root watcher.
func (m *Metrics) RecordExternalChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.externalChangesTotal++
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		RequestsTotal:        m.requestsTotal,
		RequestErrors4xx:     m.requestErrors4xx,
		RequestErrors5xx:     m.requestErrors5xx,
		RequestAvgDurationMs: avgDuration(m.requestDurationTotal, m.requestsTotal),
		DroppedConnsTotal:    m.droppedConnsTotal,
		AuthFailuresTotal:    m.authFailuresTotal,
		UploadsTotal:         m.uploadsTotal,
		UploadBytesTotal:     m.uploadBytesTotal,
		UploadConflictsTotal: m.uploadConflictsTotal,
		UpdatesTotal:         m.updatesTotal,
		UpdateFailuresTotal:  m.updateFailuresTotal,
		DeletesTotal:         m.deletesTotal,
		DownloadsTotal:       m.downloadsTotal,
		DownloadBytesTotal:   m.downloadBytesTotal,
		MirrorErrorsTotal:    m.mirrorErrorsTotal,
		AuditErrorsTotal:     m.auditErrorsTotal,
		ExternalChangesTotal: m.externalChangesTotal,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	RequestsTotal        int64   `json:"requests_total"`
	RequestErrors4xx     int64   `json:"request_errors_4xx"`
	RequestErrors5xx     int64   `json:"request_errors_5xx"`
	RequestAvgDurationMs float64 `json:"request_avg_duration_ms"`
	DroppedConnsTotal    int64   `json:"dropped_conns_total"`
	AuthFailuresTotal    int64   `json:"auth_failures_total"`

	UploadsTotal         int64 `json:"uploads_total"`
	UploadBytesTotal     int64 `json:"upload_bytes_total"`
	UploadConflictsTotal int64 `json:"upload_conflicts_total"`
	UpdatesTotal         int64 `json:"updates_total"`
	UpdateFailuresTotal  int64 `json:"update_failures_total"`
	DeletesTotal         int64 `json:"deletes_total"`
	DownloadsTotal       int64 `json:"downloads_total"`
	DownloadBytesTotal   int64 `json:"download_bytes_total"`

	MirrorErrorsTotal    int64 `json:"mirror_errors_total"`
	AuditErrorsTotal     int64 `json:"audit_errors_total"`
	ExternalChangesTotal int64 `json:"external_changes_total"`
}

// Fields flattens the snapshot for the logger.
func (s MetricsSnapshot) Fields() map[string]any {
	return map[string]any{
		"requests_total":          s.RequestsTotal,
		"request_errors_4xx":      s.RequestErrors4xx,
		"request_errors_5xx":      s.RequestErrors5xx,
		"request_avg_duration_ms": s.RequestAvgDurationMs,
		"dropped_conns_total":     s.DroppedConnsTotal,
		"auth_failures_total":     s.AuthFailuresTotal,
		"uploads_total":           s.UploadsTotal,
		"upload_bytes_total":      s.UploadBytesTotal,
		"upload_conflicts_total":  s.UploadConflictsTotal,
		"updates_total":           s.UpdatesTotal,
		"update_failures_total":   s.UpdateFailuresTotal,
		"deletes_total":           s.DeletesTotal,
		"downloads_total":         s.DownloadsTotal,
		"download_bytes_total":    s.DownloadBytesTotal,
		"mirror_errors_total":     s.MirrorErrorsTotal,
		"audit_errors_total":      s.AuditErrorsTotal,
		"external_changes_total":  s.ExternalChangesTotal,
	}
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
