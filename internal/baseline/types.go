package baseline

import (
	"time"
)

const (
	// DaysPerWeek is the number of day rows in a slot grid.
	DaysPerWeek = 7
	// HoursPerDay is the number of hour columns in a slot grid.
	HoursPerDay = 24
	// BucketCount is the number of (day, hour) buckets in one week.
	BucketCount = DaysPerWeek * HoursPerDay
)

// Sample is a single observed metric value.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Bucket holds the aggregated distribution of one (day, hour) cell across
// the baseline window.
type Bucket struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Grid is the aggregated 7x24 bucket table, indexed [day][hour] with
// day 0 = Monday.
type Grid [DaysPerWeek][HoursPerDay]Bucket

// Evaluation is the detailed outcome of an alert check.
type Evaluation struct {
	Day       int     `json:"day"`
	Hour      int     `json:"hour"`
	Bucket    Bucket  `json:"bucket"`
	Threshold float64 `json:"threshold"`
	// Boundary is the bucket quantile at Threshold; values above it alert.
	Boundary float64 `json:"boundary"`
	// Score is the bucket CDF at the observed value.
	Score    float64 `json:"score"`
	Alerting bool    `json:"alerting"`
}

// SlotInfo describes one window slot without exposing its raw values.
type SlotInfo struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Samples int       `json:"samples"`
}

// DayHour maps a timestamp to its bucket coordinates, Monday = 0.
func DayHour(ts time.Time) (day, hour int) {
	return (int(ts.Weekday()) + 6) % DaysPerWeek, ts.Hour()
}
