// Package plot renders samples, baselines and sweeps as interactive HTML charts.
package plot

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/savegress/basewatch/internal/baseline"
	"github.com/savegress/basewatch/internal/evaluate"
	"github.com/savegress/basewatch/internal/stats"
)

// HistogramBins is the number of histogram bins.
const HistogramBins = 50

const (
	chartWidth  = "1200px"
	chartHeight = "500px"
	timeLayout  = "2006-01-02 15:04"
	lineWidth   = 2
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("no data to plot")

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func initOpts(pageTitle string) opts.Initialization {
	return opts.Initialization{PageTitle: pageTitle, Width: chartWidth, Height: chartHeight}
}

// TimeSeries draws samples as a line over time.
func TimeSeries(title string, samples []baseline.Sample) (*charts.Line, error) {
	if len(samples) == 0 {
		return nil, ErrNoData
	}

	labels := make([]string, len(samples))
	data := make([]opts.LineData, len(samples))

	for i, s := range samples {
		labels[i] = s.Timestamp.Format(timeLayout)
		data[i] = opts.LineData{Value: s.Value}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(title)),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d samples", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Value"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("Value", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
	)

	return line, nil
}

// Histogram draws the value density in HistogramBins bins, overlaid with the
// normal density fitted to the same values.
func Histogram(title string, values []float64) (*charts.Bar, error) {
	if len(values) == 0 {
		return nil, ErrNoData
	}

	lo, hi := slices.Min(values), slices.Max(values)
	width := (hi - lo) / HistogramBins
	if width == 0 {
		width = 1
	}

	counts := make([]int, HistogramBins)
	for _, v := range values {
		i := int((v - lo) / width)
		if i >= HistogramBins {
			i = HistogramBins - 1
		}
		counts[i]++
	}

	mean, stddev := stats.MeanStdDev(values)
	n := float64(len(values))

	labels := make([]string, HistogramBins)
	density := make([]opts.BarData, HistogramBins)
	fitted := make([]opts.LineData, HistogramBins)

	for i, c := range counts {
		center := lo + (float64(i)+0.5)*width
		labels[i] = fmt.Sprintf("%.2f", center)
		density[i] = opts.BarData{Value: float64(c) / (n * width)}
		fitted[i] = opts.LineData{Value: finite(stats.PDF(center, mean, stddev))}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(title)),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("mean %.3f, std dev %.3f", mean, stddev),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Density"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("Density", density, charts.WithBarChartOpts(opts.BarChart{BarCategoryGap: "0%"}))

	pdf := charts.NewLine()
	pdf.SetXAxis(labels)
	pdf.AddSeries("Normal fit", fitted,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
	)
	bar.Overlap(pdf)

	return bar, nil
}

// finite replaces infinities, which do not survive JSON encoding.
func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}

	return v
}

// ROC draws the true-positive ratio against the false-positive ratio of a
// sweep together with the equal-error line TPR = 1 - FPR.
func ROC(result *evaluate.Result) (*charts.Line, error) {
	if result == nil || len(result.Points) == 0 {
		return nil, ErrNoData
	}

	curve := make([]opts.LineData, len(result.Points))
	for i, p := range result.Points {
		curve[i] = opts.LineData{
			Name:  fmt.Sprintf("threshold %.3f", p.Threshold),
			Value: []any{p.FalsePositiveRatio, p.TruePositiveRatio},
		}
	}

	eer := result.EqualError
	title := "ROC"

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(title)),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("EER threshold %.3f (TPR %.3f, FPR %.3f)", eer.Threshold, eer.TruePositiveRatio, eer.FalsePositiveRatio),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "False positive ratio", Type: "value", Min: 0, Max: 1}),
		charts.WithYAxisOpts(opts.YAxis{Name: "True positive ratio", Type: "value", Min: 0, Max: 1}),
	)
	line.AddSeries("ROC", curve, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}))
	line.AddSeries("EER", []opts.LineData{
		{Value: []any{0, 1}},
		{Value: []any{1, 0}},
	}, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	return line, nil
}

// BucketHeatMap draws the per-bucket means of a baseline, hours across and
// weekdays down.
func BucketHeatMap(grid baseline.Grid) *charts.HeatMap {
	hours := make([]string, baseline.HoursPerDay)
	for h := range hours {
		hours[h] = fmt.Sprintf("%02d", h)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	data := make([]opts.HeatMapData, 0, baseline.BucketCount)

	for day := range baseline.DaysPerWeek {
		for hour := range baseline.HoursPerDay {
			b := grid[day][hour]
			lo = min(lo, b.Mean)
			hi = max(hi, b.Mean)
			data = append(data, opts.HeatMapData{
				Name:  fmt.Sprintf("%s %02d:00 (std dev %.3f)", weekdays[day], hour, b.StdDev),
				Value: []any{hour, day, b.Mean},
			})
		}
	}

	title := "Baseline buckets"

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(title)),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "mean per weekday and hour"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category", Data: hours, Name: "Hour",
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "category", Data: weekdays,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true), Min: float32(lo), Max: float32(hi),
			InRange: &opts.VisualMapInRange{Color: []string{"#ebedf0", "#9be9a8", "#40c463", "#30a14e", "#216e39"}},
			Orient:  "horizontal", Left: "center", Bottom: "2%",
		}),
	)
	hm.AddSeries("Mean", data)

	return hm
}

// Page collects charts into a single HTML document.
type Page struct {
	page   *components.Page
	charts int
}

// NewPage creates an empty page with the given title.
func NewPage(title string) *Page {
	p := components.NewPage()
	p.PageTitle = title
	p.SetLayout(components.PageFlexLayout)

	return &Page{page: p}
}

// Add appends charts to the page.
func (p *Page) Add(c ...components.Charter) *Page {
	p.page.AddCharts(c...)
	p.charts += len(c)

	return p
}

// Len returns the number of charts on the page.
func (p *Page) Len() int {
	return p.charts
}

// Render writes the page as HTML.
func (p *Page) Render(w io.Writer) error {
	if p.charts == 0 {
		return ErrNoData
	}

	if err := p.page.Render(w); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}

	return nil
}
