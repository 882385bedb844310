package workspace

import (
	"context"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
	"go.uber.org/zap"
)

// Notifier shows a user-facing outcome message. It must not block.
type Notifier interface {
	Notify(message string, severity types.Severity)
}

// Renderer draws frames and acts on reload intents
type Renderer interface {
	Reload(ctx context.Context, frame types.FrameSpec) error
}

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs every message
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(message string, severity types.Severity) {
	fields := []zap.Field{zap.String("severity", string(severity)), zap.String("message", message)}
	if severity == types.SeverityError {
		n.logger.Warn("Notification", fields...)
		return
	}
	n.logger.Info("Notification", fields...)
}

// MultiNotifier fans a notification out to several notifiers
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(message string, severity types.Severity) {
	for _, n := range m {
		if n != nil {
			n.Notify(message, severity)
		}
	}
}

// metricsNotifier counts notifications by severity before passing them on
type metricsNotifier struct {
	next    Notifier
	metrics *monitoring.Metrics
}

func (m metricsNotifier) Notify(message string, severity types.Severity) {
	if m.metrics != nil {
		m.metrics.RecordNotification(string(severity))
	}
	if m.next != nil {
		m.next.Notify(message, severity)
	}
}
