package baseline

import (
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const week = 7 * 24 * time.Hour

// weekly returns complete hourly weeks starting at monday + offset weeks,
// where the value of every sample in week i is value(i).
func weekly(offset, weeks int, value func(i int) float64) []Sample {
	var samples []Sample

	for i := range weeks {
		start := monday.Add(time.Duration(offset+i) * week)
		samples = append(samples, hourly(start, 7*24, constant(value(offset+i)))...)
	}

	return samples
}

func TestNew_InvalidWindowSize(t *testing.T) {
	t.Parallel()

	samples := hourly(monday, 14*24, constant(10))

	for _, size := range []int{0, -1, -10} {
		b, err := New(samples, size)
		require.ErrorIs(t, err, ErrInvalidWindowSize)
		assert.Nil(t, b)
	}
}

func TestNew_ConstantTwoWeeks(t *testing.T) {
	t.Parallel()

	b, err := New(hourly(monday, 14*24, constant(10)), 1, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	require.Len(t, b.Window(), 1)
	assert.Equal(t, 1, b.WindowSize())
	assert.Equal(t, monday.AddDate(0, 0, 7), b.Start())

	grid := b.Grid()
	for day := range DaysPerWeek {
		for hour := range HoursPerDay {
			assert.InDelta(t, 10.0, grid[day][hour].Mean, 1e-12)
			assert.InDelta(t, 0.0, grid[day][hour].StdDev, 1e-12)
		}
	}

	ts := time.Date(2024, 1, 17, 9, 15, 0, 0, time.UTC)

	alerting, err := b.IsAlerting(ts, 11.0, 0.5)
	require.NoError(t, err)
	assert.True(t, alerting)

	alerting, err = b.IsAlerting(ts, 10.0, 0.5)
	require.NoError(t, err)
	assert.False(t, alerting)

	alerting, err = b.IsAlerting(ts, 9.0, 0.99)
	require.NoError(t, err)
	assert.False(t, alerting)
}

func TestNew_InsufficientData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []Sample
		window  int
	}{
		{"no samples", nil, 1},
		{"two weeks for window three", hourly(monday, 14*24, constant(10)), 3},
		{"only partial weeks", hourly(monday.Add(3*24*time.Hour), 7*24, constant(10)), 1},
		{
			// Newest complete week is preceded by an incomplete one.
			"incomplete week inside window",
			append(hourly(monday, 7*24-1, constant(1)), weekly(1, 1, func(int) float64 { return 1 })...),
			2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := New(tt.samples, tt.window)
			require.ErrorIs(t, err, ErrInsufficientData)
			assert.Contains(t, err.Error(), "window size of")
			assert.Nil(t, b)
		})
	}
}

func TestNew_ErrorNamesWindowSize(t *testing.T) {
	t.Parallel()

	_, err := New(hourly(monday, 14*24, constant(10)), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window size of 3")
}

func TestNew_SelectsNewestCompleteWeeks(t *testing.T) {
	t.Parallel()

	// Partial lead-in week, four complete weeks, partial tail week.
	var samples []Sample
	samples = append(samples, hourly(monday.Add(-48*time.Hour), 48, constant(-1))...)
	samples = append(samples, weekly(0, 4, func(i int) float64 { return float64(10 * (i + 1)) })...)
	samples = append(samples, hourly(monday.Add(4*week), 30, constant(1000))...)

	b, err := New(samples, 3)
	require.NoError(t, err)

	window := b.Window()
	require.Len(t, window, 3)

	for i, info := range window {
		assert.Equal(t, monday.Add(time.Duration(i+1)*week), info.Start)
		assert.Equal(t, 7*24, info.Samples)

		if i > 0 {
			assert.Equal(t, window[i-1].End.Add(time.Microsecond), info.Start, "weeks must be contiguous")
		}
	}

	// Weeks contribute 20, 30, 40.
	bucket, err := b.Bucket(3, 12)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, bucket.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(200.0/3.0), bucket.StdDev, 1e-9)
}

func TestNew_UnsortedInput(t *testing.T) {
	t.Parallel()

	samples := weekly(0, 3, func(i int) float64 { return float64(i) })
	shuffled := slices.Clone(samples)
	slices.Reverse(shuffled)

	sorted, err := New(samples, 2)
	require.NoError(t, err)

	unsorted, err := New(shuffled, 2)
	require.NoError(t, err)

	assert.Equal(t, sorted.Grid(), unsorted.Grid())
	assert.Equal(t, sorted.Window(), unsorted.Window())
	assert.Equal(t, samples[len(samples)-1].Timestamp, shuffled[0].Timestamp, "input must not be reordered")
}

func TestNew_MultipleSamplesPerHour(t *testing.T) {
	t.Parallel()

	// Two samples per hour: the week contributes their mean.
	var samples []Sample
	for _, s := range hourly(monday, 7*24, constant(0)) {
		samples = append(samples,
			Sample{Timestamp: s.Timestamp, Value: 4},
			Sample{Timestamp: s.Timestamp.Add(30 * time.Minute), Value: 8},
		)
	}

	b, err := New(samples, 1)
	require.NoError(t, err)

	bucket, err := b.Bucket(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, bucket.Mean, 1e-12)
	assert.InDelta(t, 0.0, bucket.StdDev, 1e-12)
}

func TestNew_NonFiniteValues(t *testing.T) {
	t.Parallel()

	t.Run("extra values are dropped", func(t *testing.T) {
		t.Parallel()

		samples := weekly(0, 1, constant(11))
		samples = append(samples,
			Sample{Timestamp: monday.Add(30 * time.Minute), Value: math.NaN()},
			Sample{Timestamp: monday.Add(90 * time.Minute), Value: math.Inf(1)},
		)

		b, err := New(samples, 1)
		require.NoError(t, err)

		for _, hour := range []int{0, 1} {
			bucket, err := b.Bucket(0, hour)
			require.NoError(t, err)
			assert.InDelta(t, 11.0, bucket.Mean, 0)
			assert.InDelta(t, 0.0, bucket.StdDev, 0)
		}

		eval, err := b.Evaluate(monday, 12, 0.5)
		require.NoError(t, err)
		assert.True(t, eval.Alerting)
		assert.False(t, math.IsNaN(eval.Score))
	})

	t.Run("hour observed only as NaN leaves the week incomplete", func(t *testing.T) {
		t.Parallel()

		samples := weekly(0, 1, constant(11))
		samples[0].Value = math.NaN()

		_, err := New(samples, 1)
		require.ErrorIs(t, err, ErrInsufficientData)
	})
}

func TestIsAlerting_ThresholdBounds(t *testing.T) {
	t.Parallel()

	b, err := New(weekly(0, 2, func(i int) float64 { return float64(i * 4) }), 2)
	require.NoError(t, err)

	ts := monday.Add(5 * time.Hour)

	for _, threshold := range []float64{-0.001, 1.001, math.NaN(), math.Inf(1)} {
		_, err := b.IsAlerting(ts, 1, threshold)
		require.ErrorIs(t, err, ErrInvalidThreshold, "threshold %v", threshold)

		_, err = b.Evaluate(ts, 1, threshold)
		require.ErrorIs(t, err, ErrInvalidThreshold, "threshold %v", threshold)
	}

	alerting, err := b.IsAlerting(ts, -1e12, 0)
	require.NoError(t, err)
	assert.True(t, alerting, "threshold 0 alerts on every finite value")

	alerting, err = b.IsAlerting(ts, 1e12, 1)
	require.NoError(t, err)
	assert.False(t, alerting, "threshold 1 never alerts")
}

func TestIsAlerting_ZeroStdDev(t *testing.T) {
	t.Parallel()

	const mean = 25.0

	b, err := New(weekly(0, 3, func(int) float64 { return mean }), 3)
	require.NoError(t, err)

	ts := monday.Add(4*week + 30*time.Hour)

	for _, threshold := range []float64{0.0001, 0.25, 0.5, 0.75, 0.9999} {
		for _, eps := range []float64{1e-9, 0.5, 100} {
			alerting, err := b.IsAlerting(ts, mean+eps, threshold)
			require.NoError(t, err)
			assert.True(t, alerting, "threshold=%v eps=%v", threshold, eps)
		}

		alerting, err := b.IsAlerting(ts, mean, threshold)
		require.NoError(t, err)
		assert.False(t, alerting, "threshold=%v", threshold)
	}
}

func TestIsAlerting_Normal(t *testing.T) {
	t.Parallel()

	// Weeks contribute 0 and 10: mean 5, stddev 5.
	b, err := New(weekly(0, 2, func(i int) float64 { return float64(i * 10) }), 2)
	require.NoError(t, err)

	ts := monday.Add(100 * time.Hour)

	// 97.5% quantile is 5 + 1.96*5 = 14.8.
	alerting, err := b.IsAlerting(ts, 14.7, 0.975)
	require.NoError(t, err)
	assert.False(t, alerting)

	alerting, err = b.IsAlerting(ts, 14.9, 0.975)
	require.NoError(t, err)
	assert.True(t, alerting)

	// Higher thresholds are more permissive.
	alerting, err = b.IsAlerting(ts, 14.9, 0.99)
	require.NoError(t, err)
	assert.False(t, alerting)
}

func TestIsAlerting_Deterministic(t *testing.T) {
	t.Parallel()

	b, err := New(weekly(0, 2, func(i int) float64 { return float64(i) }), 2)
	require.NoError(t, err)

	ts := monday.Add(37 * time.Hour)
	first, err := b.IsAlerting(ts, 0.7, 0.6)
	require.NoError(t, err)

	for range 100 {
		got, err := b.IsAlerting(ts, 0.7, 0.6)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	b, err := New(weekly(0, 2, func(i int) float64 { return float64(i * 10) }), 2)
	require.NoError(t, err)

	ts := time.Date(2024, 1, 24, 6, 0, 0, 0, time.UTC) // Wednesday

	eval, err := b.Evaluate(ts, 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2, eval.Day)
	assert.Equal(t, 6, eval.Hour)
	assert.InDelta(t, 5.0, eval.Bucket.Mean, 1e-12)
	assert.InDelta(t, 5.0, eval.Bucket.StdDev, 1e-12)
	assert.InDelta(t, 5.0, eval.Boundary, 1e-9)
	assert.InDelta(t, 0.5, eval.Score, 1e-9)
	assert.False(t, eval.Alerting)

	alerting, err := b.IsAlerting(ts, 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, alerting, eval.Alerting)
}

func TestBucket_InvalidCoordinates(t *testing.T) {
	t.Parallel()

	b, err := New(weekly(0, 1, func(int) float64 { return 1 }), 1)
	require.NoError(t, err)

	_, err = b.Bucket(7, 0)
	require.ErrorIs(t, err, ErrInvalidBucket)
	_, err = b.Bucket(0, 24)
	require.ErrorIs(t, err, ErrInvalidBucket)
}

func TestAddData_NoOp(t *testing.T) {
	t.Parallel()

	samples := weekly(0, 3, func(i int) float64 { return float64(i) })

	tests := []struct {
		name    string
		samples []Sample
	}{
		{"nil", nil},
		{"empty", []Sample{}},
		{"already consumed history", samples},
		{"sample at window end", []Sample{{Timestamp: monday.Add(3*week - time.Microsecond), Value: 1}}},
		{"partial new week", hourly(monday.Add(3*week), 100, constant(5))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := New(samples, 2)
			require.NoError(t, err)

			window, grid := b.Window(), b.Grid()

			assert.Equal(t, 0, b.AddData(tt.samples))
			assert.Equal(t, window, b.Window())
			assert.Equal(t, grid, b.Grid())
		})
	}
}

func TestAddData_SlidesWindow(t *testing.T) {
	t.Parallel()

	value := func(i int) float64 { return float64(i * 10) }

	b, err := New(weekly(0, 3, value), 3, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	// One new complete week plus a partial tail that must not be admitted.
	update := weekly(3, 1, value)
	update = append(update, hourly(monday.Add(4*week), 50, constant(-100))...)

	admitted := b.AddData(update)
	assert.Equal(t, 1, admitted)

	window := b.Window()
	require.Len(t, window, 3)
	assert.Equal(t, monday.Add(week), window[0].Start)
	assert.Equal(t, monday.Add(4*week-time.Microsecond), b.End())

	// Weeks 1..3 contribute 10, 20, 30.
	bucket, err := b.Bucket(1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, bucket.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(200.0/3.0), bucket.StdDev, 1e-9)
}

func TestAddData_IgnoresOverlap(t *testing.T) {
	t.Parallel()

	value := func(i int) float64 { return float64(i) }

	b, err := New(weekly(0, 2, value), 2)
	require.NoError(t, err)

	// Replays all history plus two new weeks.
	admitted := b.AddData(weekly(0, 4, value))
	assert.Equal(t, 2, admitted)

	window := b.Window()
	require.Len(t, window, 2)
	assert.Equal(t, monday.Add(2*week), window[0].Start)
	assert.Equal(t, monday.Add(4*week-time.Microsecond), window[1].End)
}

func TestAddData_MoreWeeksThanWindow(t *testing.T) {
	t.Parallel()

	value := func(i int) float64 { return float64(i) }

	b, err := New(weekly(0, 2, value), 2)
	require.NoError(t, err)

	admitted := b.AddData(weekly(2, 5, value))
	assert.Equal(t, 2, admitted)

	window := b.Window()
	require.Len(t, window, 2)
	assert.Equal(t, monday.Add(5*week), window[0].Start)
	assert.Equal(t, monday.Add(7*week-time.Microsecond), b.End())

	bucket, err := b.Bucket(6, 23)
	require.NoError(t, err)
	assert.InDelta(t, 5.5, bucket.Mean, 1e-9)
}

func TestAddData_StopsAtIncompleteWeek(t *testing.T) {
	t.Parallel()

	value := func(i int) float64 { return float64(i) }

	b, err := New(weekly(0, 3, value), 3)
	require.NoError(t, err)

	// New week 3 misses one hour, weeks 4 and 5 are complete.
	update := weekly(3, 3, value)
	update = slices.DeleteFunc(update, func(s Sample) bool {
		return s.Timestamp.Equal(monday.Add(3*week + 10*time.Hour))
	})

	admitted := b.AddData(update)
	assert.Equal(t, 2, admitted)

	window := b.Window()
	require.Len(t, window, 3)
	assert.Equal(t, monday.Add(2*week), window[0].Start)
	assert.Equal(t, monday.Add(4*week), window[1].Start)
	assert.Equal(t, monday.Add(5*week), window[2].Start)
}

func TestAddData_DropsNonFinite(t *testing.T) {
	t.Parallel()

	value := func(i int) float64 { return float64(i) }

	b, err := New(weekly(0, 2, value), 2)
	require.NoError(t, err)

	update := weekly(2, 1, value)
	update = append(update, Sample{Timestamp: monday.Add(2*week + 15*time.Minute), Value: math.Inf(-1)})

	assert.Equal(t, 1, b.AddData(update))

	bucket, err := b.Bucket(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, bucket.Mean, 1e-12)
	assert.InDelta(t, 0.5, bucket.StdDev, 1e-12)
}

func TestAddData_ReadsInWindowLocation(t *testing.T) {
	t.Parallel()

	value := func(i int) float64 { return float64(i) }

	b, err := New(weekly(0, 2, value), 2)
	require.NoError(t, err)

	// The next week expressed at UTC+2 still lands on the UTC week.
	east := time.FixedZone("UTC+2", 2*60*60)
	update := weekly(2, 1, value)
	for i := range update {
		update[i].Timestamp = update[i].Timestamp.In(east)
	}

	assert.Equal(t, 1, b.AddData(update))

	window := b.Window()
	require.Len(t, window, 2)
	assert.Equal(t, monday.Add(2*week), window[1].Start)
	assert.Equal(t, time.UTC, window[1].Start.Location())

	bucket, err := b.Bucket(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, bucket.Mean, 1e-12)
}

func TestAddData_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	value := func(i int) float64 { return float64(i) }

	b, err := New(weekly(0, 2, value), 2)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for r := range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 200 {
				_, err := b.IsAlerting(monday.Add(time.Duration(r*i)*time.Hour), float64(i), 0.9)
				assert.NoError(t, err)
			}
		}()
	}

	for i := 2; i < 6; i++ {
		b.AddData(weekly(i, 1, value))
	}

	wg.Wait()

	assert.Equal(t, monday.Add(6*week-time.Microsecond), b.End())
	assert.Len(t, b.Window(), 2)
}
