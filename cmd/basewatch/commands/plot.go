package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/savegress/basewatch/internal/plot"
)

const (
	plotCmdUse   = "plot <baseline.csv>"
	plotCmdShort = "Render sample charts as HTML"
	plotArgCount = 1
)

type plotCommand struct {
	globals *Globals

	timeSeries bool
	histogram  bool
	buckets    bool
	window     int
	output     string
}

// NewPlotCommand creates the plot subcommand.
func NewPlotCommand(g *Globals) *cobra.Command {
	pc := &plotCommand{globals: g}

	cmd := &cobra.Command{
		Use:   plotCmdUse,
		Short: plotCmdShort,
		Args:  cobra.ExactArgs(plotArgCount),
		RunE:  pc.run,
	}

	cmd.Flags().BoolVar(&pc.timeSeries, "time-series", false, "plot the samples over time")
	cmd.Flags().BoolVar(&pc.histogram, "histogram", false, "plot the value histogram with a normal fit")
	cmd.Flags().BoolVar(&pc.buckets, "base-slot-histogram", false, "plot the bucket means of the baseline window")
	cmd.Flags().IntVarP(&pc.window, "window", "w", 0, "window size in weeks (default from config)")
	cmd.Flags().StringVarP(&pc.output, "output", "o", "", "output HTML file (default from config)")

	return cmd
}

func (pc *plotCommand) run(cmd *cobra.Command, args []string) error {
	if !pc.timeSeries && !pc.histogram && !pc.buckets {
		return ErrNothingToDo
	}

	cfg, err := pc.globals.Config()
	if err != nil {
		return err
	}

	samples, err := pc.globals.loadSamples(args[0])
	if err != nil {
		return err
	}

	page := plot.NewPage("basewatch " + args[0])

	if pc.timeSeries {
		chart, err := plot.TimeSeries("Samples", samples)
		if err != nil {
			return err
		}
		page.Add(chart)
	}

	if pc.histogram {
		chart, err := plot.Histogram("Value distribution", sampleValues(samples))
		if err != nil {
			return err
		}
		page.Add(chart)
	}

	if pc.buckets {
		b, err := pc.globals.buildBaseline(samples, pc.window)
		if err != nil {
			return err
		}
		page.Add(plot.BucketHeatMap(b.Grid()))
	}

	output := pc.output
	if output == "" {
		output = cfg.Plot.Output
	}

	if err := writePage(output, page); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d chart(s) written to %s\n", page.Len(), output)

	return nil
}
