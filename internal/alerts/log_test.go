package alerts

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/savegress/basewatch/internal/baseline"
)

var observed = time.Date(2024, 1, 3, 14, 0, 0, 0, time.UTC)

func alerting(score float64) baseline.Evaluation {
	return baseline.Evaluation{
		Day:       2,
		Hour:      14,
		Bucket:    baseline.Bucket{Mean: 10, StdDev: 2},
		Threshold: 0.99,
		Boundary:  14.65,
		Score:     score,
		Alerting:  true,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLog_Fire(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	l := NewLog(10, WithLogger(zaptest.NewLogger(t)), WithClock(fixedClock(now)))

	alert := l.Fire(observed, 20, alerting(0.995))
	require.NotNil(t, alert)

	_, err := uuid.Parse(alert.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusOpen, alert.Status)
	assert.Equal(t, SeverityWarning, alert.Severity)
	assert.Equal(t, observed, alert.Timestamp)
	assert.Equal(t, now, alert.FiredAt)
	assert.Equal(t, 2, alert.Day)
	assert.Equal(t, 14, alert.Hour)
	assert.InDelta(t, 10.0, alert.Mean, 0)
	assert.Contains(t, alert.Message, "exceeds 14.6500")

	got, ok := l.Get(alert.ID)
	require.True(t, ok)
	assert.Equal(t, alert, got)
}

func TestLog_FireIgnoresNonAlerting(t *testing.T) {
	t.Parallel()

	l := NewLog(10)

	eval := alerting(0.5)
	eval.Alerting = false

	assert.Nil(t, l.Fire(observed, 1, eval))
	assert.Zero(t, l.Len())
}

func TestLog_Severity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  Severity
	}{
		{0.99, SeverityWarning},
		{0.999, SeverityHigh},
		{0.9999, SeverityHigh},
		{0.99999, SeverityCritical},
		{1, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.score), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, severity(tt.score))
		})
	}
}

func TestLog_CapacityEvictsOldest(t *testing.T) {
	t.Parallel()

	l := NewLog(3)

	var ids []string
	for i := range 5 {
		ids = append(ids, l.Fire(observed.Add(time.Duration(i)*time.Hour), float64(i), alerting(0.995)).ID)
	}

	assert.Equal(t, 3, l.Len())

	_, ok := l.Get(ids[0])
	assert.False(t, ok)
	_, ok = l.Get(ids[1])
	assert.False(t, ok)

	list := l.List(Filter{})
	require.Len(t, list, 3)
	assert.Equal(t, ids[4], list[0].ID)
	assert.Equal(t, ids[2], list[2].ID)
}

func TestLog_ListFilters(t *testing.T) {
	t.Parallel()

	l := NewLog(0)

	warning := l.Fire(observed, 1, alerting(0.995))
	l.Fire(observed, 2, alerting(0.9995))
	l.Fire(observed, 3, alerting(0.999999))

	_, err := l.Acknowledge(warning.ID, "oncall")
	require.NoError(t, err)

	assert.Len(t, l.List(Filter{Limit: 2}), 2)
	assert.Len(t, l.List(Filter{Status: StatusOpen}), 2)
	assert.Len(t, l.List(Filter{Severity: SeverityCritical}), 1)

	acked := l.List(Filter{Status: StatusAcknowledged})
	require.Len(t, acked, 1)
	assert.Equal(t, warning.ID, acked[0].ID)
	assert.Equal(t, "oncall", acked[0].AcknowledgedBy)
	assert.NotNil(t, acked[0].AcknowledgedAt)
}

func TestLog_AcknowledgeResolve(t *testing.T) {
	t.Parallel()

	l := NewLog(10)
	alert := l.Fire(observed, 1, alerting(0.995))

	resolved, err := l.Resolve(alert.ID, "system")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, resolved.Status)
	assert.Equal(t, "system", resolved.ResolvedBy)

	// Returned alerts are copies.
	resolved.Status = StatusOpen
	got, _ := l.Get(alert.ID)
	assert.Equal(t, StatusResolved, got.Status)

	_, err = l.Acknowledge("missing", "oncall")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = l.Resolve("missing", "oncall")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLog_Summary(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-2 * time.Hour)
	l := NewLog(10, WithClock(func() time.Time { return clock }))

	l.Fire(observed, 1, alerting(0.995))

	clock = now
	a := l.Fire(observed, 2, alerting(0.9995))
	b := l.Fire(observed, 3, alerting(0.9995))

	_, err := l.Acknowledge(a.ID, "oncall")
	require.NoError(t, err)
	_, err = l.Resolve(b.ID, "oncall")
	require.NoError(t, err)

	s := l.Summary()
	assert.Equal(t, 3, s.TotalAlerts)
	assert.Equal(t, 1, s.OpenAlerts)
	assert.Equal(t, 1, s.AckedAlerts)
	assert.Equal(t, 1, s.ResolvedAlerts)
	assert.Equal(t, map[string]int{"warning": 1, "high": 2}, s.BySeverity)
	assert.Equal(t, 2, s.RecentFired)
}

func TestLog_Concurrent(t *testing.T) {
	t.Parallel()

	l := NewLog(50)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				l.Fire(observed, 1, alerting(0.995))
				l.List(Filter{Limit: 5})
				l.Summary()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, l.Len())
}
