// Package baseline builds a weekly seasonal baseline from metric history and
// flags observed values that are improbably high for their (weekday, hour)
// bucket.
//
// History is split into Monday-to-Sunday weeks. The newest windowSize
// complete weeks (every hour of the week observed) form the window, and each
// of the 168 buckets is summarized as a normal distribution over the values
// the window's weeks contribute to it.
//
// Input is expected to be gap-free: apart from the first and last week, every
// week of history should be present. Sortedness is not required.
package baseline

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/savegress/basewatch/internal/stats"
)

// Baseline is the trailing window of complete weeks and its per-bucket
// distributions. It is safe for concurrent use.
type Baseline struct {
	windowSize int
	logger     *zap.Logger

	// writeMu serializes AddData calls; mu guards slots and grid.
	writeMu sync.Mutex
	mu      sync.RWMutex
	slots   []*Slot
	grid    Grid
}

// Option configures a Baseline.
type Option func(*Baseline)

// WithLogger sets the logger used for construction and window updates.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Baseline) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New builds a baseline from the newest windowSize complete weeks in samples.
// NaN and infinite values are dropped, so an hour observed only as such
// leaves its week incomplete. Weeks are laid out in the location of the
// earliest sample.
func New(samples []Sample, windowSize int, opts ...Option) (*Baseline, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindowSize, windowSize)
	}

	b := &Baseline{
		windowSize: windowSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	sorted, dropped := sortedCopy(samples)
	if dropped > 0 {
		b.logger.Warn("dropping non-finite samples", zap.Int("dropped", dropped))
	}

	weeks := Bucketize(sorted)

	last := 0
	for i := len(weeks) - 1; i >= 0; i-- {
		if weeks[i].Complete() {
			last = i + 1
			break
		}
	}

	if last < windowSize || !allComplete(weeks[last-windowSize:last]) {
		b.logger.Warn("insufficient history for baseline",
			zap.Int("window_size", windowSize),
			zap.Int("weeks", len(weeks)),
			zap.Int("samples", len(samples)),
		)

		return nil, fmt.Errorf("%w to use window size of %d", ErrInsufficientData, windowSize)
	}

	b.slots = make([]*Slot, 0, windowSize)
	for _, w := range weeks[last-windowSize : last] {
		b.slots = append(b.slots, w.Freeze())
	}

	b.grid = aggregate(b.slots)

	b.logger.Info("baseline built",
		zap.Int("window_size", windowSize),
		zap.Time("start", b.slots[0].Start()),
		zap.Time("end", b.slots[len(b.slots)-1].End()),
		zap.Int("weeks_seen", len(weeks)),
	)

	return b, nil
}

func allComplete(weeks []*SlotBuilder) bool {
	for _, w := range weeks {
		if !w.Complete() {
			return false
		}
	}

	return true
}

// aggregate computes the bucket grid from the window, one value per week
// per bucket.
func aggregate(slots []*Slot) Grid {
	var grid Grid

	values := make([]float64, len(slots))

	for day := range DaysPerWeek {
		for hour := range HoursPerDay {
			for i, s := range slots {
				values[i] = s.weekValue(day, hour)
			}

			mean, stddev := stats.MeanStdDev(values)
			grid[day][hour] = Bucket{Mean: mean, StdDev: stddev}
		}
	}

	return grid
}

// IsAlerting reports whether value observed at ts lies above the quantile
// of its bucket's distribution at threshold.
//
// threshold is the cumulative probability accepted as normal: 0 alerts on
// every finite value, 1 never alerts. A value exactly on the boundary does
// not alert.
func (b *Baseline) IsAlerting(ts time.Time, value, threshold float64) (bool, error) {
	if !validThreshold(threshold) {
		return false, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}

	day, hour := DayHour(ts)

	b.mu.RLock()
	bucket := b.grid[day][hour]
	b.mu.RUnlock()

	return value > stats.Quantile(threshold, bucket.Mean, bucket.StdDev), nil
}

// Evaluate is IsAlerting with the bucket, boundary and CDF score attached.
func (b *Baseline) Evaluate(ts time.Time, value, threshold float64) (Evaluation, error) {
	if !validThreshold(threshold) {
		return Evaluation{}, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}

	day, hour := DayHour(ts)

	b.mu.RLock()
	bucket := b.grid[day][hour]
	b.mu.RUnlock()

	boundary := stats.Quantile(threshold, bucket.Mean, bucket.StdDev)

	return Evaluation{
		Day:       day,
		Hour:      hour,
		Bucket:    bucket,
		Threshold: threshold,
		Boundary:  boundary,
		Score:     stats.CDF(value, bucket.Mean, bucket.StdDev),
		Alerting:  value > boundary,
	}, nil
}

func validThreshold(threshold float64) bool {
	return !math.IsNaN(threshold) && threshold >= 0 && threshold <= 1
}

// AddData slides the window forward over complete weeks found in samples and
// returns how many weeks were admitted.
//
// Samples at or before the end of the current window are ignored, as are
// NaN and infinite values. Timestamps are read in the window's location.
// At most windowSize of the newest consecutive complete weeks are admitted
// and the same number of oldest weeks are evicted, so the window size never
// changes.
// When no new complete week is found the baseline is left untouched.
func (b *Baseline) AddData(samples []Sample) int {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	// Only writers replace slots, and writeMu is held.
	current := b.slots
	cutoff := current[len(current)-1].End()

	sorted, dropped := sortedCopy(samples)
	if dropped > 0 {
		b.logger.Warn("dropping non-finite samples", zap.Int("dropped", dropped))
	}

	from := sort.Search(len(sorted), func(i int) bool {
		return sorted[i].Timestamp.After(cutoff)
	})

	// New weeks line up with the window's weeks whatever the samples' zone.
	weeks := bucketizeIn(sorted[from:], cutoff.Location())

	lastComplete := -1
	for i := len(weeks) - 1; i >= 0; i-- {
		if weeks[i].Complete() {
			lastComplete = i
			break
		}
	}

	if lastComplete < 0 {
		b.logger.Debug("no new complete week",
			zap.Int("samples", len(samples)),
			zap.Int("fresh_samples", len(sorted)-from),
		)

		return 0
	}

	firstComplete := lastComplete
	for i := lastComplete - 1; i >= 0 && lastComplete-i < b.windowSize && weeks[i].Complete(); i-- {
		firstComplete = i
	}

	admitted := lastComplete - firstComplete + 1

	next := make([]*Slot, 0, b.windowSize)
	next = append(next, current[admitted:]...)

	for _, w := range weeks[firstComplete : lastComplete+1] {
		next = append(next, w.Freeze())
	}

	grid := aggregate(next)

	b.mu.Lock()
	b.slots = next
	b.grid = grid
	b.mu.Unlock()

	b.logger.Info("baseline window advanced",
		zap.Int("admitted", admitted),
		zap.Time("start", next[0].Start()),
		zap.Time("end", next[len(next)-1].End()),
	)

	return admitted
}

// WindowSize returns the number of weeks in the window.
func (b *Baseline) WindowSize() int {
	return b.windowSize
}

// Window describes the window's weeks, oldest first.
func (b *Baseline) Window() []SlotInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]SlotInfo, len(b.slots))
	for i, s := range b.slots {
		infos[i] = s.Info()
	}

	return infos
}

// Start returns the first instant of the oldest window week.
func (b *Baseline) Start() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.slots[0].Start()
}

// End returns the last instant of the newest window week.
func (b *Baseline) End() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.slots[len(b.slots)-1].End()
}

// Bucket returns the distribution of the (day, hour) bucket, Monday = 0.
func (b *Baseline) Bucket(day, hour int) (Bucket, error) {
	if !validBucket(day, hour) {
		return Bucket{}, fmt.Errorf("%w: day=%d hour=%d", ErrInvalidBucket, day, hour)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.grid[day][hour], nil
}

// Grid returns a copy of all bucket distributions.
func (b *Baseline) Grid() Grid {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.grid
}
