package baseline

import (
	"fmt"
	"slices"
	"time"
)

type cellGrid [DaysPerWeek][HoursPerDay][]float64

// SlotBuilder collects one calendar week of samples into a 7x24 grid.
// It is the mutable half of a base slot; Freeze turns it into a read-only Slot.
type SlotBuilder struct {
	start   time.Time
	end     time.Time
	cells   cellGrid
	samples int
	frozen  *Slot
}

// NewSlotBuilder creates a builder for the Monday-to-Sunday week containing
// ts. Boundaries are inclusive and computed in ts's location.
func NewSlotBuilder(ts time.Time) *SlotBuilder {
	start, end := weekBounds(ts)

	return &SlotBuilder{start: start, end: end}
}

func weekBounds(ts time.Time) (start, end time.Time) {
	day, _ := DayHour(ts)
	y, m, d := ts.Date()
	loc := ts.Location()

	start = time.Date(y, m, d-day, 0, 0, 0, 0, loc)
	end = time.Date(y, m, d-day+DaysPerWeek-1, 23, 59, 59, int(999999*time.Microsecond), loc)

	return start, end
}

// Start returns the first instant of the week.
func (b *SlotBuilder) Start() time.Time { return b.start }

// End returns the last instant of the week.
func (b *SlotBuilder) End() time.Time { return b.end }

// Contains reports whether ts falls inside the week.
func (b *SlotBuilder) Contains(ts time.Time) bool {
	return !ts.Before(b.start) && !ts.After(b.end)
}

// Add appends value to the (day, hour) cell.
func (b *SlotBuilder) Add(day, hour int, value float64) error {
	if b.frozen != nil {
		return ErrSlotFrozen
	}

	if !validBucket(day, hour) {
		return fmt.Errorf("%w: day=%d hour=%d", ErrInvalidBucket, day, hour)
	}

	b.cells[day][hour] = append(b.cells[day][hour], value)
	b.samples++

	return nil
}

// Values returns a copy of the (day, hour) cell. Only frozen slots can be read.
func (b *SlotBuilder) Values(day, hour int) ([]float64, error) {
	if b.frozen == nil {
		return nil, ErrSlotNotFrozen
	}

	return b.frozen.Values(day, hour)
}

// Complete reports whether every one of the 168 cells holds a value.
func (b *SlotBuilder) Complete() bool {
	return b.cells.complete()
}

// Frozen reports whether Freeze has been called.
func (b *SlotBuilder) Frozen() bool {
	return b.frozen != nil
}

// Freeze stops further additions and returns the read-only slot. Repeated
// calls return the same slot.
func (b *SlotBuilder) Freeze() *Slot {
	if b.frozen == nil {
		b.frozen = &Slot{
			start:   b.start,
			end:     b.end,
			cells:   b.cells,
			samples: b.samples,
		}
	}

	return b.frozen
}

// Slot is a frozen calendar week. Its cells never change.
type Slot struct {
	start   time.Time
	end     time.Time
	cells   cellGrid
	samples int
}

// Start returns the first instant of the week.
func (s *Slot) Start() time.Time { return s.start }

// End returns the last instant of the week.
func (s *Slot) End() time.Time { return s.end }

// Samples returns the number of values held by the slot.
func (s *Slot) Samples() int { return s.samples }

// Complete reports whether every one of the 168 cells holds a value.
func (s *Slot) Complete() bool {
	return s.cells.complete()
}

// Values returns a copy of the (day, hour) cell.
func (s *Slot) Values(day, hour int) ([]float64, error) {
	if !validBucket(day, hour) {
		return nil, fmt.Errorf("%w: day=%d hour=%d", ErrInvalidBucket, day, hour)
	}

	return slices.Clone(s.cells[day][hour]), nil
}

// Info summarizes the slot.
func (s *Slot) Info() SlotInfo {
	return SlotInfo{Start: s.start, End: s.end, Samples: s.samples}
}

// weekValue collapses a cell into the single value the week contributes to
// its bucket: the cell mean, which is the sample itself for hourly data.
func (s *Slot) weekValue(day, hour int) float64 {
	cell := s.cells[day][hour]

	var sum float64
	for _, v := range cell {
		sum += v
	}

	return sum / float64(len(cell))
}

func (g *cellGrid) complete() bool {
	for day := range DaysPerWeek {
		for hour := range HoursPerDay {
			if len(g[day][hour]) == 0 {
				return false
			}
		}
	}

	return true
}

func validBucket(day, hour int) bool {
	return day >= 0 && day < DaysPerWeek && hour >= 0 && hour < HoursPerDay
}
