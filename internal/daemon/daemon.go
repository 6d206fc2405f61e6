package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"archivist/internal/config"
	"archivist/internal/library"
	"archivist/internal/logging"
	"archivist/internal/notifications"
	"archivist/internal/pipeline"
	"archivist/internal/preflight"
	"archivist/internal/progress"
	"archivist/internal/staging"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *library.Store
	pipeline *pipeline.Manager
	hub      *progress.Hub
	paths    *staging.Manager
	notifier notifications.Service
	logHub   *logging.StreamHub

	lockPath string
	lock     *flock.Flock

	apiSrv  *apiServer
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Pipeline      pipeline.StatusSummary
	LibraryDBPath string
	LockFilePath  string
	Preflight     []preflight.Result
}

// Options bundles the daemon's collaborators.
type Options struct {
	Config   *config.Config
	Store    *library.Store
	Logger   *slog.Logger
	Pipeline *pipeline.Manager
	Hub      *progress.Hub
	Notifier notifications.Service
	LogHub   *logging.StreamHub
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Store == nil || opts.Logger == nil || opts.Pipeline == nil || opts.Hub == nil {
		return nil, errors.New("daemon requires config, store, logger, hub, and pipeline manager")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}

	lockPath := filepath.Join(opts.Config.Paths.LogDir, "archivistd.lock")
	return &Daemon{
		cfg:      opts.Config,
		logger:   logging.NewComponentLogger(opts.Logger, "daemon"),
		store:    opts.Store,
		pipeline: opts.Pipeline,
		hub:      opts.Hub,
		paths:    staging.NewManager(opts.Config),
		notifier: notifier,
		logHub:   opts.LogHub,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, runs preflight checks, and launches the
// pipeline manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another archivist daemon instance is already running")
	}

	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			d.logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
		} else {
			d.logger.Warn("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
			)
		}
	}

	if reclaimed, err := d.store.ResetStuckProcessing(ctx); err != nil {
		d.logger.Warn("failed to reset stuck items", logging.Error(err))
	} else if reclaimed > 0 {
		d.logger.Info("reset stuck items from previous run", logging.Int64("count", reclaimed))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.pipeline.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start pipeline: %w", err)
	}

	apiSrv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		cancel()
		d.pipeline.Stop()
		_ = d.lock.Unlock()
		return err
	}
	if apiSrv != nil {
		if err := apiSrv.start(runCtx); err != nil {
			cancel()
			d.pipeline.Stop()
			_ = d.lock.Unlock()
			return err
		}
	}
	d.apiSrv = apiSrv
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("archivist daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiSrv.stop()
	d.apiSrv = nil
	d.pipeline.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("archivist daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Pipeline:      d.pipeline.Status(ctx),
		LibraryDBPath: d.cfg.DatabasePath(),
		LockFilePath:  d.lockPath,
		Preflight:     preflight.RunAll(ctx, d.cfg),
	}
}

// APIAddr returns the API listen address once the server is up, or empty when
// the API is disabled.
func (d *Daemon) APIAddr() string {
	return d.apiSrv.addr()
}

// LogStream returns the live log hub, if wired.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}

// CreateRecording registers a new library item awaiting its upload.
func (d *Daemon) CreateRecording(ctx context.Context, title, contentType, sourceFileName string) (*library.Item, error) {
	parsed, ok := library.ParseContentType(contentType)
	if !ok {
		return nil, fmt.Errorf("unknown content type %q", contentType)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(sourceFileName, filepath.Ext(sourceFileName))
	}
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("title or source file name is required")
	}
	item, err := d.store.NewItem(ctx, title, parsed, sourceFileName)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	d.logger.Info("recording created",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldContentType, string(parsed)),
	)
	return item, nil
}

// StageUpload streams uploaded bytes into the item's staging area.
func (d *Daemon) StageUpload(ctx context.Context, id int64, fileName string, body io.Reader) (*library.Item, int64, error) {
	item, err := d.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, 0, errNotFoundOr(err)
	}
	if item.Status != library.StatusUploading {
		return nil, 0, fmt.Errorf("recording %d is %s, not awaiting upload", id, item.Status)
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = item.SourceFileName
	}
	staged, written, err := d.paths.WriteUpload(item.ID, fileName, body)
	if err != nil {
		return nil, 0, fmt.Errorf("stage upload: %w", err)
	}
	item.StagedPath = staged
	if item.SourceFileName == "" {
		item.SourceFileName = filepath.Base(staged)
	}
	if err := d.store.Update(ctx, item); err != nil {
		return nil, 0, fmt.Errorf("persist staged upload: %w", err)
	}
	d.hub.Publish(item.ID, progress.NewLogEvent(fmt.Sprintf("Upload staged (%d bytes)", written)))
	return item, written, nil
}

// Finalize promotes the staged upload into the library and queues the item
// for processing.
func (d *Daemon) Finalize(ctx context.Context, id int64) (*library.Item, error) {
	item, err := d.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, errNotFoundOr(err)
	}
	if item.Status != library.StatusUploading {
		return nil, fmt.Errorf("recording %d is %s, not awaiting finalize", id, item.Status)
	}
	final, err := d.paths.Promote(item)
	if err != nil {
		return nil, err
	}
	item.LibraryPath = final
	item.StagedPath = ""
	item.Status = library.StatusUploaded
	if err := d.store.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("persist finalize: %w", err)
	}

	if info, statErr := os.Stat(final); statErr == nil {
		if err := d.notifier.NotifyUploadReceived(ctx, item.Title, info.Size()); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Debug("upload notification failed", logging.Error(err))
		}
	}
	d.hub.Publish(item.ID, progress.NewLogEvent("Upload finalized, queued for processing"))
	d.logger.Info("recording finalized", logging.Int64(logging.FieldItemID, item.ID))
	return item, nil
}

// Reprocess rolls an item back to the start status for the given step so the
// pipeline reruns it.
func (d *Daemon) Reprocess(ctx context.Context, id int64, step library.ProcessingStep) (*library.Item, error) {
	item, err := d.store.RollbackForStep(ctx, id, step)
	if err != nil {
		return nil, err
	}
	d.logger.Info("recording queued for reprocessing",
		logging.Int64(logging.FieldItemID, id),
		logging.String("step", string(step)),
	)
	return item, nil
}

// SetMetadata updates title, free-form metadata, and tags on a recording.
func (d *Daemon) SetMetadata(ctx context.Context, id int64, title string, metadata json.RawMessage, tags []string) (*library.Item, error) {
	item, err := d.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, errNotFoundOr(err)
	}
	if title = strings.TrimSpace(title); title != "" {
		item.Title = title
	}
	if len(metadata) > 0 {
		if !json.Valid(metadata) {
			return nil, errors.New("metadata must be valid JSON")
		}
		item.MetadataJSON = string(metadata)
	}
	if err := d.store.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("persist metadata: %w", err)
	}
	for _, tag := range tags {
		if err := d.store.TagItem(ctx, item.ID, tag); err != nil {
			return nil, fmt.Errorf("tag recording: %w", err)
		}
	}
	return item, nil
}

// DeleteRecording soft deletes by default; permanent removes the row and the
// item's library artifacts.
func (d *Daemon) DeleteRecording(ctx context.Context, id int64, permanent bool) (bool, error) {
	if !permanent {
		return d.store.Delete(ctx, id)
	}
	item, err := d.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	if err := d.paths.RemoveArtifacts(item); err != nil {
		d.logger.Warn("failed to remove artifacts", logging.Int64(logging.FieldItemID, id), logging.Error(err))
	}
	_ = d.paths.DiscardStaging(id)
	return d.store.Purge(ctx, id)
}

// RestoreRecording clears a soft delete.
func (d *Daemon) RestoreRecording(ctx context.Context, id int64) (bool, error) {
	return d.store.Restore(ctx, id)
}

// RetryFailed resets failed items (optionally a subset) back to uploaded.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func errNotFoundOr(err error) error {
	if err != nil {
		return err
	}
	return errors.New("recording not found")
}
