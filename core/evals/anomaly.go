package evals

import (
	"log/slog"
	"time"

	"github.com/answergrid/groundwork/model"
)

// Anomaly detection defaults: a short lookback window over recent runs, a
// threshold per metric, and a cooldown that suppresses repeated notifications
// of the same event type. Detection itself is never suppressed.
const (
	DefaultLookback              = 10
	DefaultRefusalSpikeThreshold = 0.05
	DefaultCitationDropThreshold = 0.10
	DefaultNotificationCooldown  = 24 * time.Hour
	severityEscalationMultiplier = 2.0
)

// MonitorStore records anomaly events and exposes past ones for the cooldown.
type MonitorStore interface {
	InsertMonitorEvent(tenant string, event *model.MonitorEvent) error
	SelectMonitorEvents(tenant string, eventType string, limit int) ([]*model.MonitorEvent, error)
}

// DetectorConfig holds the anomaly detection knobs.
type DetectorConfig struct {
	// Runs compared per detection: the latest against the mean of the rest.
	Lookback int
	// Absolute deltas against the baseline that trigger an event.
	RefusalSpikeThreshold float64
	CitationDropThreshold float64
	// Window in which the same event type is not re-notified per tenant.
	NotificationCooldown time.Duration
}

// DefaultDetectorConfig returns the default detection knobs.
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		Lookback:              DefaultLookback,
		RefusalSpikeThreshold: DefaultRefusalSpikeThreshold,
		CitationDropThreshold: DefaultCitationDropThreshold,
		NotificationCooldown:  DefaultNotificationCooldown,
	}
}

// Detector compares the latest eval run of a tenant against the mean of the
// runs before it and emits monitor events when a metric moves past its
// threshold. Severity escalates to high when the delta is at least twice the
// threshold.
type Detector struct {
	evaluator *Evaluator
	store     EvalStore
	monitor   MonitorStore
	logger    *slog.Logger
	config    *DetectorConfig
	now       func() time.Time
}

// NewDetector creates an anomaly detector with the default config.
func NewDetector(evaluator *Evaluator, store EvalStore, monitor MonitorStore, logger *slog.Logger) *Detector {
	return NewDetectorWithConfig(evaluator, store, monitor, nil, logger)
}

// NewDetectorWithConfig creates an anomaly detector with explicit knobs.
// A nil config means defaults.
func NewDetectorWithConfig(evaluator *Evaluator, store EvalStore, monitor MonitorStore, config *DetectorConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &Detector{
		evaluator: evaluator,
		store:     store,
		monitor:   monitor,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// DetectAnomalies inspects the tenant's recent runs and returns the events it
// emitted. A non-positive lookbackN means the configured lookback. Fewer than
// two runs means there is no baseline yet, which is not an error.
func (d *Detector) DetectAnomalies(tenant string, lookbackN int) ([]*model.MonitorEvent, error) {
	if lookbackN <= 0 {
		lookbackN = d.config.Lookback
	}

	runs, err := d.store.SelectEvalRuns(tenant, lookbackN)
	if err != nil {
		return nil, err
	}
	if len(runs) < 2 {
		return nil, nil
	}

	latest, err := d.evaluator.ComputeMetrics(tenant, runs[0].RunID)
	if err != nil {
		return nil, err
	}

	baselineRefusal := 0.0
	baselineCitation := 0.0
	for _, run := range runs[1:] {
		metrics, err := d.evaluator.ComputeMetrics(tenant, run.RunID)
		if err != nil {
			return nil, err
		}
		baselineRefusal += metrics.RefusalRate
		baselineCitation += metrics.CitationRate
	}
	baselineCount := float64(len(runs) - 1)
	baselineRefusal /= baselineCount
	baselineCitation /= baselineCount

	var emitted []*model.MonitorEvent

	if delta := latest.RefusalRate - baselineRefusal; delta >= d.config.RefusalSpikeThreshold {
		event, err := d.emit(tenant, model.EventRefusalSpike, delta, d.config.RefusalSpikeThreshold, model.Metadata{
			"latest":   latest.RefusalRate,
			"baseline": baselineRefusal,
			"delta":    delta,
			"run_id":   runs[0].RunID.String(),
		})
		if err != nil {
			return nil, err
		}
		if event != nil {
			emitted = append(emitted, event)
		}
	}

	if delta := baselineCitation - latest.CitationRate; delta >= d.config.CitationDropThreshold {
		event, err := d.emit(tenant, model.EventCitationDrop, delta, d.config.CitationDropThreshold, model.Metadata{
			"latest":   latest.CitationRate,
			"baseline": baselineCitation,
			"delta":    -delta,
			"run_id":   runs[0].RunID.String(),
		})
		if err != nil {
			return nil, err
		}
		if event != nil {
			emitted = append(emitted, event)
		}
	}

	return emitted, nil
}

// emit records one anomaly event unless an event of the same type was already
// recorded for the tenant within the cooldown window. The anomaly is still
// logged when suppressed.
func (d *Detector) emit(tenant string, eventType string, delta float64, threshold float64, details model.Metadata) (*model.MonitorEvent, error) {
	recent, err := d.monitor.SelectMonitorEvents(tenant, eventType, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) > 0 && d.now().Sub(recent[0].CreatedAt) < d.config.NotificationCooldown {
		d.logger.Warn("Anomaly detected but notification suppressed by cooldown",
			"tenant", tenant, "event_type", eventType, "delta", delta)
		return nil, nil
	}

	severity := model.SeverityMedium
	if delta >= severityEscalationMultiplier*threshold {
		severity = model.SeverityHigh
	}

	event := &model.MonitorEvent{
		EventType: eventType,
		Severity:  severity,
		Details:   details,
	}
	if err := d.monitor.InsertMonitorEvent(tenant, event); err != nil {
		return nil, err
	}

	d.logger.Warn("Anomaly detected", "tenant", tenant, "event_type", eventType, "severity", severity, "delta", delta)
	return event, nil
}
