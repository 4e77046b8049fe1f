// Package alerts keeps a bounded history of alerting baseline checks.
package alerts

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/savegress/basewatch/internal/baseline"
)

// DefaultCapacity is the number of alerts kept when none is configured.
const DefaultCapacity = 100

// ErrNotFound is returned for an unknown alert id.
var ErrNotFound = errors.New("alert not found")

// Scores at or above these CDF values escalate severity.
const (
	highScore     = 0.999
	criticalScore = 0.99999
)

// Log is a fixed-capacity, newest-first alert history. It is safe for
// concurrent use.
type Log struct {
	capacity int
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	alerts []*Alert // oldest first
	byID   map[string]*Alert
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger alerts are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLog creates a log holding at most capacity alerts. A non-positive
// capacity uses DefaultCapacity.
func NewLog(capacity int, opts ...Option) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	l := &Log{
		capacity: capacity,
		logger:   zap.NewNop(),
		now:      time.Now,
		alerts:   make([]*Alert, 0, capacity),
		byID:     make(map[string]*Alert, capacity),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Fire records an alert for an alerting evaluation and returns it. Non-alerting
// evaluations are ignored and yield nil.
func (l *Log) Fire(ts time.Time, value float64, eval baseline.Evaluation) *Alert {
	if !eval.Alerting {
		return nil
	}

	alert := &Alert{
		ID:        uuid.NewString(),
		Severity:  severity(eval.Score),
		Status:    StatusOpen,
		Message:   formatMessage(ts, value, eval),
		Timestamp: ts,
		Value:     value,
		Day:       eval.Day,
		Hour:      eval.Hour,
		Mean:      eval.Bucket.Mean,
		StdDev:    eval.Bucket.StdDev,
		Threshold: eval.Threshold,
		Boundary:  finite(eval.Boundary),
		Score:     eval.Score,
		FiredAt:   l.now(),
	}

	l.mu.Lock()
	if len(l.alerts) == l.capacity {
		evicted := l.alerts[0]
		delete(l.byID, evicted.ID)
		l.alerts = append(l.alerts[:0], l.alerts[1:]...)
	}
	l.alerts = append(l.alerts, alert)
	l.byID[alert.ID] = alert
	l.mu.Unlock()

	l.logger.Info("alert fired",
		zap.String("id", alert.ID),
		zap.String("severity", string(alert.Severity)),
		zap.Time("timestamp", ts),
		zap.Float64("value", value),
		zap.Float64("boundary", eval.Boundary),
	)

	return copyAlert(alert)
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}

	return &v
}

func severity(score float64) Severity {
	switch {
	case score >= criticalScore:
		return SeverityCritical
	case score >= highScore:
		return SeverityHigh
	default:
		return SeverityWarning
	}
}

func formatMessage(ts time.Time, value float64, eval baseline.Evaluation) string {
	return fmt.Sprintf(
		"value %.4f at %s exceeds %.4f (mean %.4f, std dev %.4f, threshold %.4f)",
		value,
		ts.Format(time.RFC3339),
		eval.Boundary,
		eval.Bucket.Mean,
		eval.Bucket.StdDev,
		eval.Threshold,
	)
}

// Get returns an alert by id.
func (l *Log) Get(id string) (*Alert, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	alert, ok := l.byID[id]
	if !ok {
		return nil, false
	}

	return copyAlert(alert), true
}

// List returns alerts matching filter, newest first.
func (l *Log) List(filter Filter) []*Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]*Alert, 0)
	for i := len(l.alerts) - 1; i >= 0; i-- {
		alert := l.alerts[i]
		if !matches(alert, filter) {
			continue
		}

		results = append(results, copyAlert(alert))
		if filter.Limit > 0 && len(results) == filter.Limit {
			break
		}
	}

	return results
}

func matches(alert *Alert, filter Filter) bool {
	if filter.Status != "" && alert.Status != filter.Status {
		return false
	}
	if filter.Severity != "" && alert.Severity != filter.Severity {
		return false
	}
	return true
}

// Acknowledge marks an alert as acknowledged by user.
func (l *Log) Acknowledge(id, user string) (*Alert, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	alert, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := l.now()
	alert.Status = StatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = user

	return copyAlert(alert), nil
}

// Resolve marks an alert as resolved by user.
func (l *Log) Resolve(id, user string) (*Alert, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	alert, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := l.now()
	alert.Status = StatusResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = user

	return copyAlert(alert), nil
}

// Summary counts the alerts in the log.
func (l *Log) Summary() *Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := &Summary{
		BySeverity: make(map[string]int),
	}

	hourAgo := l.now().Add(-time.Hour)

	for _, alert := range l.alerts {
		summary.TotalAlerts++
		summary.BySeverity[string(alert.Severity)]++

		switch alert.Status {
		case StatusOpen:
			summary.OpenAlerts++
		case StatusAcknowledged:
			summary.AckedAlerts++
		case StatusResolved:
			summary.ResolvedAlerts++
		}

		if alert.FiredAt.After(hourAgo) {
			summary.RecentFired++
		}
	}

	return summary
}

// Len returns the number of alerts held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.alerts)
}

func copyAlert(a *Alert) *Alert {
	c := *a
	return &c
}
