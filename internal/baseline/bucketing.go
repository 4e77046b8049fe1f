package baseline

import (
	"math"
	"slices"
	"time"
)

// Bucketize splits samples into consecutive calendar weeks.
//
// samples must be sorted ascending by timestamp. Week boundaries and (day,
// hour) cells are computed in the location of the first sample; later
// samples are converted to it. A new week starts exactly when a sample lies
// after the current week's end; weeks with no samples at all are not
// synthesized, so input with week-sized gaps yields adjacent slots that are
// not calendar-contiguous.
func Bucketize(samples []Sample) []*SlotBuilder {
	if len(samples) == 0 {
		return nil
	}

	return bucketizeIn(samples, samples[0].Timestamp.Location())
}

func bucketizeIn(samples []Sample, loc *time.Location) []*SlotBuilder {
	if len(samples) == 0 {
		return nil
	}

	current := NewSlotBuilder(samples[0].Timestamp.In(loc))
	weeks := []*SlotBuilder{current}

	for _, s := range samples {
		ts := s.Timestamp.In(loc)
		if ts.After(current.End()) {
			current = NewSlotBuilder(ts)
			weeks = append(weeks, current)
		}

		day, hour := DayHour(ts)
		// Builders are fresh and coordinates come from DayHour, so Add cannot fail.
		_ = current.Add(day, hour, s.Value)
	}

	return weeks
}

// sortedCopy returns samples ordered by timestamp without touching the input.
// NaN and infinite values are dropped; the second result counts them.
func sortedCopy(samples []Sample) ([]Sample, int) {
	sorted := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		sorted = append(sorted, s)
	}

	slices.SortStableFunc(sorted, func(a, b Sample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return sorted, len(samples) - len(sorted)
}
