package transfer

import (
	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/logging"
)

// Manager owns the upload and download coordinators.
type Manager struct {
	uploads   *Coordinator
	downloads *Coordinator
}

// NewManager creates both coordinators with the given runners.
func NewManager(upload, download Runner, eventBus *events.EventBus, logger *logging.Logger, opts Options) *Manager {
	return &Manager{
		uploads:   NewCoordinator(KindUpload, upload, eventBus, logger, opts),
		downloads: NewCoordinator(KindDownload, download, eventBus, logger, opts),
	}
}

// Uploads returns the upload coordinator.
func (m *Manager) Uploads() *Coordinator {
	return m.uploads
}

// Downloads returns the download coordinator.
func (m *Manager) Downloads() *Coordinator {
	return m.downloads
}

// For returns the coordinator of kind.
func (m *Manager) For(kind Kind) *Coordinator {
	if kind == KindUpload {
		return m.uploads
	}
	return m.downloads
}

// ManagerStats sums the task counts of both coordinators.
type ManagerStats struct {
	Active    int
	Completed int
	Failed    int
	Cancelled int
}

// GetStats returns task counts across both directions.
func (m *Manager) GetStats() ManagerStats {
	var s ManagerStats
	for _, c := range []*Coordinator{m.uploads, m.downloads} {
		snap := c.Snapshot()
		s.Active += snap.ActiveCount
		s.Completed += snap.CompletedCount
		s.Failed += snap.FailedCount
		s.Cancelled += snap.CancelledCount
	}
	return s
}

// Close shuts down both coordinators.
func (m *Manager) Close() {
	m.uploads.Close()
	m.downloads.Close()
}
