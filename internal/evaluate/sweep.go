// Package evaluate measures how well a baseline separates known anomalous
// samples from known normal ones across a sweep of thresholds.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/savegress/basewatch/internal/baseline"
)

// DefaultStep is the threshold increment used when none is configured.
const DefaultStep = 0.001

var (
	// ErrNoPositives is returned when the positive sample set is empty.
	ErrNoPositives = errors.New("no positive samples")
	// ErrNoNegatives is returned when the negative sample set is empty.
	ErrNoNegatives = errors.New("no negative samples")
	// ErrInvalidStep is returned for a sweep step outside (0, 1].
	ErrInvalidStep = errors.New("sweep step must be in (0, 1]")
)

// Alerter decides whether a value is alerting at a threshold.
type Alerter interface {
	IsAlerting(ts time.Time, value, threshold float64) (bool, error)
}

// Point is the outcome of one threshold.
type Point struct {
	Threshold          float64 `json:"threshold"`
	TruePositiveRatio  float64 `json:"true_positive_ratio"`
	FalsePositiveRatio float64 `json:"false_positive_ratio"`
}

// Result holds the full sweep.
type Result struct {
	Points    []Point `json:"points"`
	Positives int     `json:"positives"`
	Negatives int     `json:"negatives"`
	// EqualError is the point where the miss rate and false-positive rate
	// are closest.
	EqualError Point `json:"equal_error"`
}

// Thresholds returns 0, step, 2*step, ... up to but excluding 1.
func Thresholds(step float64) ([]float64, error) {
	if math.IsNaN(step) || step <= 0 || step > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidStep, step)
	}

	var thresholds []float64
	for i := 0; ; i++ {
		th := float64(i) * step
		if th >= 1 {
			break
		}
		thresholds = append(thresholds, th)
	}

	return thresholds, nil
}

// Sweep evaluates alerter on positives and negatives for every threshold.
func Sweep(ctx context.Context, alerter Alerter, positives, negatives []baseline.Sample, step float64) (*Result, error) {
	if len(positives) == 0 {
		return nil, ErrNoPositives
	}
	if len(negatives) == 0 {
		return nil, ErrNoNegatives
	}

	thresholds, err := Thresholds(step)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Points:    make([]Point, 0, len(thresholds)),
		Positives: len(positives),
		Negatives: len(negatives),
	}

	bestGap := math.Inf(1)

	for _, th := range thresholds {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sweep cancelled at threshold %v: %w", th, err)
		}

		tp, err := countAlerting(alerter, positives, th)
		if err != nil {
			return nil, err
		}

		fp, err := countAlerting(alerter, negatives, th)
		if err != nil {
			return nil, err
		}

		p := Point{
			Threshold:          th,
			TruePositiveRatio:  float64(tp) / float64(len(positives)),
			FalsePositiveRatio: float64(fp) / float64(len(negatives)),
		}
		result.Points = append(result.Points, p)

		if gap := math.Abs(p.TruePositiveRatio - (1 - p.FalsePositiveRatio)); gap < bestGap {
			bestGap = gap
			result.EqualError = p
		}
	}

	return result, nil
}

func countAlerting(alerter Alerter, samples []baseline.Sample, threshold float64) (int, error) {
	n := 0

	for _, s := range samples {
		alerting, err := alerter.IsAlerting(s.Timestamp, s.Value, threshold)
		if err != nil {
			return 0, fmt.Errorf("failed to evaluate sample at %s: %w", s.Timestamp.Format(time.RFC3339), err)
		}
		if alerting {
			n++
		}
	}

	return n, nil
}
