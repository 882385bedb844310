package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/autosave"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/batch"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/persistence"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/session"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
	"go.uber.org/zap"
)

// ErrNoSuchWindow is wrapped by every out-of-range index error
var ErrNoSuchWindow = errors.New("no such window")

// DefaultSandbox is the capability list given to every frame. Frames never
// get allow-same-origin: combined with allow-scripts a frame could lift its
// own sandbox.
var DefaultSandbox = []string{"allow-scripts", "allow-popups", "allow-forms"}

const msgFrameLoadFailed = "Page failed to load. Check the URL or your network connection"

// Generator produces profiles and defines what a valid profile is
type Generator interface {
	session.Generator
	persistence.Rules
	Strategies() []string
}

// Deps are the collaborators a Manager is built from
type Deps struct {
	Generator     Generator
	Gateway       *persistence.Gateway
	Notifier      Notifier
	Renderer      Renderer
	Logger        *zap.Logger
	Metrics       *monitoring.Metrics
	Sandbox       []string
	BatchWorkers  int
	TickerFactory autosave.TickerFactory
}

// Manager is the single owner of the windows, settings and their persistence
type Manager struct {
	mu     sync.Mutex // Serializes operations
	saveMu sync.Mutex // Serializes snapshot+write

	settingsMu sync.RWMutex
	settings   types.Settings // Protected by settingsMu

	store     *session.Store
	generator Generator
	gateway   *persistence.Gateway
	scheduler *autosave.Scheduler
	batch     *batch.Coordinator
	notifier  Notifier
	renderer  Renderer
	sandbox   []string
	logger    *zap.Logger
}

// New creates a manager. Start must be called before use.
func New(deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sandbox := deps.Sandbox
	if sandbox == nil {
		sandbox = DefaultSandbox
	}

	m := &Manager{
		settings:  deps.Gateway.Defaults(),
		store:     session.NewStore(deps.Generator).WithMetrics(deps.Metrics),
		generator: deps.Generator,
		gateway:   deps.Gateway,
		notifier:  metricsNotifier{next: deps.Notifier, metrics: deps.Metrics},
		renderer:  deps.Renderer,
		sandbox:   append([]string(nil), sandbox...),
		logger:    logger,
	}

	m.scheduler = autosave.New(m.autoSave, logger.Named("autosave")).WithMetrics(deps.Metrics)
	if deps.TickerFactory != nil {
		m.scheduler.WithTickerFactory(deps.TickerFactory)
	}

	var renderer batch.Renderer
	if deps.Renderer != nil {
		renderer = deps.Renderer
	}
	m.batch = batch.NewCoordinator(m.store, renderer, m.frame, deps.BatchWorkers, logger.Named("batch")).
		WithMetrics(deps.Metrics)

	return m
}

// Start restores persisted state, opens a first window when there is none and
// arms autosave
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, settings := m.gateway.Load(ctx)
	m.store.Replace(sessions)
	m.setSettings(settings)

	if m.store.Len() == 0 {
		if _, err := m.createLocked(ctx); err != nil && !apperr.Is(err, apperr.KindStorage) {
			return fmt.Errorf("failed to open first window: %w", err)
		}
	}

	if err := m.scheduler.Arm(settings.AutoSaveDuration()); err != nil {
		return fmt.Errorf("failed to arm autosave: %w", err)
	}

	m.logger.Info("Workspace started",
		zap.Int("windows", m.store.Len()),
		zap.Int("autosave_seconds", settings.AutoSaveInterval))
	m.notify(fmt.Sprintf("Restored %d windows", m.store.Len()), types.SeverityInfo)
	return nil
}

// Close stops autosave and performs a final save
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scheduler.Stop()
	if err := m.persist(ctx); err != nil {
		m.logger.Error("Final save failed", zap.Error(err))
		return err
	}
	return nil
}

// Sessions returns a copy of all windows in order
func (m *Manager) Sessions() []types.Session {
	return m.store.Snapshot()
}

// Frames returns the render spec of every window in order
func (m *Manager) Frames() []types.FrameSpec {
	sessions := m.store.Snapshot()
	out := make([]types.FrameSpec, len(sessions))
	for i, s := range sessions {
		out[i] = m.frame(i, s)
	}
	return out
}

// Sandbox returns the frame capability list
func (m *Manager) Sandbox() []string {
	return append([]string(nil), m.sandbox...)
}

// AutoSaveInterval returns the armed autosave interval, zero when stopped
func (m *Manager) AutoSaveInterval() time.Duration {
	return m.scheduler.Interval()
}

// Settings returns the current settings
func (m *Manager) Settings() types.Settings {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()
	return m.settings
}

// Strategies lists the device strategies settings may name
func (m *Manager) Strategies() []string {
	return m.generator.Strategies()
}

// CreateWindow opens a window with a fresh profile at the default url
func (m *Manager) CreateWindow(ctx context.Context) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.createLocked(ctx)
	if err != nil {
		if !apperr.Is(err, apperr.KindStorage) {
			m.notify("Failed to create window: "+apperr.Message(err), types.SeverityError)
			return types.Session{}, err
		}
		m.notifySaveFailed()
		return sess, err
	}
	m.notify("New window created", types.SeveritySuccess)
	return sess, nil
}

func (m *Manager) createLocked(ctx context.Context) (types.Session, error) {
	settings := m.Settings()
	profile, err := m.generator.Generate(ctx, settings.DeviceStrategy)
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to generate profile: %w", err)
	}
	sess, err := m.store.Create(ctx, profile, settings.DefaultURL)
	if err != nil {
		return types.Session{}, err
	}
	return sess, m.persist(ctx)
}

// CloseWindow closes the window at index
func (m *Manager) CloseWindow(ctx context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex("workspace.close", index); err != nil {
		return err
	}
	m.store.Close(index)
	return m.finish(ctx, "Window closed", types.SeverityInfo)
}

// CloseAll closes every window and returns how many were closed
func (m *Manager) CloseAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcome, n := m.store.CloseAll()
	if outcome == session.NothingToClose {
		m.notify("No windows to close", types.SeverityInfo)
		return 0, nil
	}
	return n, m.finish(ctx, fmt.Sprintf("Closed %d windows", n), types.SeverityInfo)
}

// Navigate points one window at url
func (m *Manager) Navigate(ctx context.Context, index int, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex("workspace.navigate", index); err != nil {
		return err
	}
	if err := m.store.Navigate(index, url); err != nil {
		// The window now carries the error; persist that too
		m.persistQuietly(ctx)
		m.notify(apperr.Message(err), types.SeverityError)
		return err
	}
	sess, _ := m.store.Get(index)
	return m.finish(ctx, "Navigating to "+sess.URL, types.SeveritySuccess)
}

// NavigateAll points every window at url, or none when url is invalid
func (m *Manager) NavigateAll(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized, err := m.store.NavigateAll(url)
	if err != nil {
		m.notify(apperr.Message(err), types.SeverityError)
		return "", err
	}
	return normalized, m.finish(ctx, fmt.Sprintf("All windows navigating to %s", normalized), types.SeveritySuccess)
}

// RefreshFingerprint gives one window a new device profile
func (m *Manager) RefreshFingerprint(ctx context.Context, index int) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex("workspace.refresh", index); err != nil {
		return types.Session{}, err
	}
	sess, err := m.store.RefreshFingerprint(ctx, index, m.Settings().DeviceStrategy)
	if err != nil {
		m.notify("Failed to refresh fingerprint: "+apperr.Message(err), types.SeverityError)
		return types.Session{}, err
	}
	return sess, m.finish(ctx, "Device fingerprint refreshed", types.SeveritySuccess)
}

// Reload signals a reload of one window to the renderer
func (m *Manager) Reload(ctx context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex("workspace.reload", index); err != nil {
		return err
	}
	sess, err := m.store.Reload(index)
	if err != nil {
		return err
	}
	if m.renderer != nil {
		if err := m.renderer.Reload(ctx, m.frame(index, sess)); err != nil {
			m.notify("Failed to reload window: "+err.Error(), types.SeverityError)
			return err
		}
	}
	m.notify("Reloading window", types.SeverityInfo)
	return nil
}

// HandleFrameLoaded clears the loading state of a window whose frame finished
// loading
func (m *Manager) HandleFrameLoaded(ctx context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex("workspace.frame_loaded", index); err != nil {
		return err
	}
	if err := m.store.FrameLoaded(index); err != nil {
		return err
	}
	m.persistQuietly(ctx)
	m.notify("Page loaded", types.SeverityInfo)
	return nil
}

// HandleFrameError records a frame load failure reported by the renderer. An
// empty message uses the generic load failure text.
func (m *Manager) HandleFrameError(ctx context.Context, index int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex("workspace.frame_error", index); err != nil {
		return err
	}
	if message == "" {
		message = msgFrameLoadFailed
	}
	if err := m.store.FrameError(index, message); err != nil {
		return err
	}
	m.persistQuietly(ctx)
	m.notify(message, types.SeverityError)
	return nil
}

// Reorder moves a window from one position to another
func (m *Manager) Reorder(ctx context.Context, from, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex("workspace.reorder", from); err != nil {
		return err
	}
	if err := m.checkIndex("workspace.reorder", to); err != nil {
		return err
	}
	if err := m.store.Reorder(from, to); err != nil {
		return err
	}
	return m.finish(ctx, "Window moved", types.SeverityInfo)
}

// Batch runs a batch operation over every window
func (m *Manager) Batch(ctx context.Context, op string) (batch.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := m.batch.Run(ctx, op, m.Settings().DeviceStrategy)
	if err != nil {
		err = &apperr.Error{
			Kind:    apperr.KindValidation,
			Op:      "workspace.batch",
			Message: fmt.Sprintf("Unknown batch operation %q", op),
			Err:     err,
		}
		m.notify(apperr.Message(err), types.SeverityError)
		return batch.Result{}, err
	}

	var saveErr error
	if op == batch.OpRefreshAll && result.Succeeded() > 0 {
		saveErr = m.persist(ctx)
	}

	switch {
	case saveErr != nil:
		m.notifySaveFailed()
	case !result.OK():
		m.notify(fmt.Sprintf("%d of %d windows failed", len(result.Failed), result.Attempted), types.SeverityError)
	case op == batch.OpRefreshAll:
		m.notify(fmt.Sprintf("Refreshed %d fingerprints", result.Attempted), types.SeveritySuccess)
	default:
		m.notify(fmt.Sprintf("Reloading %d windows", result.Attempted), types.SeverityInfo)
	}
	return result, saveErr
}

// SaveSettings validates and applies new settings, persists them and re-arms
// autosave
func (m *Manager) SaveSettings(ctx context.Context, settings types.Settings) (types.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	validated, err := persistence.ValidateSettings(m.generator, settings)
	if err != nil {
		m.notify(apperr.Message(err), types.SeverityError)
		return m.Settings(), err
	}
	m.setSettings(validated)
	m.rearm(validated)

	if err := m.gateway.SaveSettings(ctx, validated); err != nil {
		m.logger.Warn("Failed to persist settings", zap.Error(err))
		m.notifySaveFailed()
		return validated, err
	}
	m.notify("Settings saved", types.SeveritySuccess)
	return validated, nil
}

// Export renders the current state as a bundle document
func (m *Manager) Export(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.gateway.ExportBundle(m.store.Snapshot(), m.Settings())
	if err != nil {
		m.notify("Export failed", types.SeverityError)
		return nil, err
	}
	m.notify("Configuration exported", types.SeveritySuccess)
	return doc, nil
}

// Import replaces the windows and merges the settings from a bundle document.
// Nothing changes when the document is invalid.
func (m *Manager) Import(ctx context.Context, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, settings, err := m.gateway.ImportBundle(doc, m.Settings())
	if err != nil {
		m.notify(apperr.Message(err), types.SeverityError)
		return err
	}

	m.store.Replace(sessions)
	m.setSettings(settings)
	m.rearm(settings)
	return m.finish(ctx, fmt.Sprintf("Imported %d windows", len(sessions)), types.SeveritySuccess)
}

// Save persists the full state now
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finish(ctx, "State saved", types.SeveritySuccess)
}

// finish persists after a successful mutation and sends the one notification
// for the operation
func (m *Manager) finish(ctx context.Context, message string, severity types.Severity) error {
	if err := m.persist(ctx); err != nil {
		m.notifySaveFailed()
		return err
	}
	m.notify(message, severity)
	return nil
}

// persist snapshots and writes under saveMu so writes land in snapshot order
func (m *Manager) persist(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	err := m.gateway.Save(ctx, m.store.Snapshot(), m.Settings())
	if err != nil {
		m.logger.Warn("Failed to persist workspace", zap.Error(err))
	}
	return err
}

func (m *Manager) persistQuietly(ctx context.Context) {
	_ = m.persist(ctx)
}

// autoSave runs on the scheduler goroutine and must not take mu
func (m *Manager) autoSave(ctx context.Context) error {
	return m.persist(ctx)
}

func (m *Manager) rearm(settings types.Settings) {
	if err := m.scheduler.Arm(settings.AutoSaveDuration()); err != nil {
		m.logger.Error("Failed to re-arm autosave", zap.Error(err))
	}
}

func (m *Manager) setSettings(s types.Settings) {
	m.settingsMu.Lock()
	m.settings = s
	m.settingsMu.Unlock()
}

// checkIndex rejects an index before the store is touched. The rejection is
// the operation's notification. Must be called with mu held.
func (m *Manager) checkIndex(op string, index int) error {
	if n := m.store.Len(); index < 0 || index >= n {
		m.notify(fmt.Sprintf("No window at index %d", index), types.SeverityError)
		return &apperr.Error{
			Kind:    apperr.KindNotFound,
			Op:      op,
			Message: fmt.Sprintf("No window at index %d", index),
			Err:     ErrNoSuchWindow,
		}
	}
	return nil
}

func (m *Manager) frame(index int, s types.Session) types.FrameSpec {
	return types.FrameSpec{
		Index:     index,
		ID:        s.ID,
		URL:       s.URL,
		IsLoading: s.IsLoading,
		Error:     s.Error,
		Sandbox:   append([]string(nil), m.sandbox...),
	}
}

func (m *Manager) notify(message string, severity types.Severity) {
	m.notifier.Notify(message, severity)
}

func (m *Manager) notifySaveFailed() {
	m.notify("Changes could not be saved", types.SeverityError)
}
