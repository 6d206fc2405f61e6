package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"archivist/internal/config"
	"archivist/internal/library"
	"archivist/internal/logging"
	"archivist/internal/notifications"
	"archivist/internal/progress"
)

// Manager advances library items through the configured processing stages.
type Manager struct {
	cfg          *config.Config
	store        *library.Store
	logger       *slog.Logger
	hub          *progress.Hub
	notifier     notifications.Service
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor

	stageByStart       map[library.Status]pipelineStage
	textOverrides      map[library.Status]pipelineStage
	statusOrder        []library.Status
	processingStatuses []library.Status

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *library.Item
}

// NewManager constructs a pipeline manager with the default ntfy notifier.
func NewManager(cfg *config.Config, store *library.Store, logger *slog.Logger, hub *progress.Hub) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, hub, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a pipeline manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *library.Store, logger *slog.Logger, hub *progress.Hub, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		hub:          hub,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *library.Item) {
	m.mu.Lock()
	if item != nil {
		cp := *item
		m.lastItem = &cp
	} else {
		m.lastItem = nil
	}
	m.mu.Unlock()
}
