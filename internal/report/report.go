// Package report renders baseline and evaluation results as text tables.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/savegress/basewatch/internal/baseline"
	"github.com/savegress/basewatch/internal/evaluate"
)

const (
	ratioFormat = "%.4f"
	valueFormat = "%.4f"
	timeLayout  = "2006-01-02 15:04"
)

var weekdays = [baseline.DaysPerWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	return tbl
}

func render(w io.Writer, title string, tbl table.Writer) error {
	if title != "" {
		tbl.SetTitle(title)
	}

	_, err := fmt.Fprintln(w, tbl.Render())

	return err
}

// Sweep writes one row per threshold and a footer with the equal-error point.
func Sweep(w io.Writer, result *evaluate.Result) error {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Threshold", "True positive ratio", "False positive ratio"})

	for _, p := range result.Points {
		tbl.AppendRow(table.Row{
			fmt.Sprintf("%.3f", p.Threshold),
			fmt.Sprintf(ratioFormat, p.TruePositiveRatio),
			fmt.Sprintf(ratioFormat, p.FalsePositiveRatio),
		})
	}

	eer := result.EqualError
	tbl.AppendFooter(table.Row{
		fmt.Sprintf("EER @ %.3f", eer.Threshold),
		fmt.Sprintf(ratioFormat, eer.TruePositiveRatio),
		fmt.Sprintf(ratioFormat, eer.FalsePositiveRatio),
	})

	title := fmt.Sprintf("Threshold sweep (%d positives, %d negatives)", result.Positives, result.Negatives)

	return render(w, title, tbl)
}

// Extremes writes the n smallest and largest values side by side.
func Extremes(w io.Writer, mins, maxs []float64) error {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"#", "Min", "Max"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})

	rows := max(len(mins), len(maxs))
	for i := range rows {
		row := table.Row{i + 1, "", ""}
		if i < len(mins) {
			row[1] = fmt.Sprintf(valueFormat, mins[i])
		}
		if i < len(maxs) {
			row[2] = fmt.Sprintf(valueFormat, maxs[i])
		}

		tbl.AppendRow(row)
	}

	return render(w, "Extremes", tbl)
}

// Summary writes global statistics over a series.
func Summary(w io.Writer, count int, mean, stddev float64) error {
	tbl := newTable()
	tbl.AppendRows([]table.Row{
		{"Samples", count},
		{"Mean", fmt.Sprintf(valueFormat, mean)},
		{"Std dev", fmt.Sprintf(valueFormat, stddev)},
	})

	return render(w, "Summary", tbl)
}

// Window lists the weeks a baseline is built from.
func Window(w io.Writer, weeks []baseline.SlotInfo) error {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"#", "Start", "End", "Samples"})

	for i, week := range weeks {
		tbl.AppendRow(table.Row{
			i + 1,
			week.Start.Format(timeLayout),
			week.End.Truncate(time.Minute).Format(timeLayout),
			week.Samples,
		})
	}

	return render(w, "Window", tbl)
}

// Grid writes the bucket distributions with one row per hour and one column
// per weekday. Cells read "mean ± stddev".
func Grid(w io.Writer, grid baseline.Grid) error {
	tbl := newTable()

	header := table.Row{"Hour"}
	for _, day := range weekdays {
		header = append(header, day)
	}
	tbl.AppendHeader(header)

	for hour := range baseline.HoursPerDay {
		row := table.Row{fmt.Sprintf("%02d:00", hour)}
		for day := range baseline.DaysPerWeek {
			b := grid[day][hour]
			row = append(row, fmt.Sprintf("%.2f ± %.2f", b.Mean, b.StdDev))
		}

		tbl.AppendRow(row)
	}

	return render(w, "Buckets", tbl)
}
