package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

var codec = sonic.ConfigStd

// Gateway is the only writer of the persisted records
type Gateway struct {
	store    RecordStore
	rules    Rules
	defaults types.Settings
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewGateway creates a gateway over store. defaults are what Load falls back to.
func NewGateway(store RecordStore, rules Rules, defaults types.Settings, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		store:    store,
		rules:    rules,
		defaults: defaults,
		logger:   logger,
	}
}

// WithMetrics adds metrics tracking to the gateway
func (g *Gateway) WithMetrics(metrics *monitoring.Metrics) *Gateway {
	g.metrics = metrics
	return g
}

// Defaults returns the built-in settings
func (g *Gateway) Defaults() types.Settings {
	return g.defaults
}

// Rules returns the validation rules used for import and load
func (g *Gateway) Rules() Rules {
	return g.rules
}

// Save writes both records. Each write is attempted even if the other fails.
func (g *Gateway) Save(ctx context.Context, sessions []types.Session, settings types.Settings) error {
	errSettings := g.put(ctx, RecordSettings, settings)
	if sessions == nil {
		sessions = []types.Session{}
	}
	errWindows := g.put(ctx, RecordWindows, sessions)

	if err := errors.Join(errSettings, errWindows); err != nil {
		return apperr.Storage("persistence.save", err)
	}
	return nil
}

// SaveSettings writes only the settings record
func (g *Gateway) SaveSettings(ctx context.Context, settings types.Settings) error {
	if err := g.put(ctx, RecordSettings, settings); err != nil {
		return apperr.Storage("persistence.save_settings", err)
	}
	return nil
}

func (g *Gateway) put(ctx context.Context, key string, v interface{}) error {
	data, err := codec.Marshal(v)
	if err == nil {
		err = g.store.Put(ctx, key, data)
	}

	if g.metrics != nil {
		st := "success"
		if err != nil {
			st = "error"
		}
		g.metrics.RecordRecordWrite(key, st)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Load reads both records. An absent, unreadable or corrupt record falls back
// to its default; invalid windows are dropped one by one. Load never fails.
func (g *Gateway) Load(ctx context.Context) ([]types.Session, types.Settings) {
	return g.loadWindows(ctx), g.loadSettings(ctx)
}

func (g *Gateway) loadSettings(ctx context.Context) types.Settings {
	data, ok := g.read(ctx, RecordSettings)
	if !ok {
		return g.defaults
	}

	var doc settingsDoc
	if err := codec.Unmarshal(data, &doc); err != nil {
		g.logger.Warn("Corrupt settings record, using defaults", zap.Error(err))
		return g.defaults
	}

	// Merge field by field so one bad value does not discard the rest
	out := g.defaults
	fields := []settingsDoc{
		{DefaultURL: doc.DefaultURL},
		{DeviceStrategy: doc.DeviceStrategy},
		{AutoSaveInterval: doc.AutoSaveInterval},
	}
	for _, f := range fields {
		merged, err := mergeSettings(g.rules, "persistence.load", &f, out)
		if err != nil {
			g.logger.Warn("Ignoring invalid persisted setting", zap.String("reason", apperr.Message(err)))
			continue
		}
		out = merged
	}
	return out
}

func (g *Gateway) loadWindows(ctx context.Context) []types.Session {
	data, ok := g.read(ctx, RecordWindows)
	if !ok {
		return []types.Session{}
	}

	var docs []sessionDoc
	if err := codec.Unmarshal(data, &docs); err != nil {
		g.logger.Warn("Corrupt windows record, starting empty", zap.Error(err))
		return []types.Session{}
	}

	out := make([]types.Session, 0, len(docs))
	seen := make(map[int64]bool, len(docs))
	for i, d := range docs {
		sess, err := checkSession(g.rules, i, d)
		if err != nil {
			g.logger.Warn("Dropping invalid persisted window", zap.String("reason", apperr.Message(err)))
			continue
		}
		if seen[sess.ID] {
			g.logger.Warn("Dropping duplicate persisted window", zap.Int64("id", sess.ID))
			continue
		}
		seen[sess.ID] = true
		// Nothing is in flight after a restart
		sess.IsLoading = false
		out = append(out, sess)
	}
	return out
}

func (g *Gateway) read(ctx context.Context, key string) ([]byte, bool) {
	data, found, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Warn("Failed to read record, using default", zap.String("record", key), zap.Error(err))
		return nil, false
	}
	return data, found
}

// ExportBundle renders the indented export document
func (g *Gateway) ExportBundle(sessions []types.Session, settings types.Settings) ([]byte, error) {
	if sessions == nil {
		sessions = []types.Session{}
	}
	data, err := codec.MarshalIndent(types.Bundle{Windows: sessions, Settings: settings}, "", "  ")
	if err != nil {
		return nil, apperr.Storage("persistence.export", err)
	}
	return data, nil
}

// ImportBundle validates doc completely before returning anything. Windows
// replace the current ones wholesale (none when absent); settings are
// shallow-merged over current.
func (g *Gateway) ImportBundle(doc []byte, current types.Settings) ([]types.Session, types.Settings, error) {
	var bundle bundleDoc
	if err := codec.Unmarshal(doc, &bundle); err != nil {
		return nil, current, apperr.Validationf(opImport, "Invalid configuration file: %v", err)
	}

	sessions := []types.Session{}
	if bundle.Windows != nil {
		seen := make(map[int64]int, len(*bundle.Windows))
		for i, d := range *bundle.Windows {
			sess, err := checkSession(g.rules, i, d)
			if err != nil {
				return nil, current, err
			}
			if prev, dup := seen[sess.ID]; dup {
				return nil, current, apperr.Validationf(opImport, "windows %d and %d share id %d", prev, i, sess.ID)
			}
			seen[sess.ID] = i
			sessions = append(sessions, sess)
		}
	}

	settings, err := mergeSettings(g.rules, opImport, bundle.Settings, current)
	if err != nil {
		return nil, current, err
	}
	return sessions, settings, nil
}
