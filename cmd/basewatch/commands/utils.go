package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/savegress/basewatch/internal/baseline"
	"github.com/savegress/basewatch/internal/report"
	"github.com/savegress/basewatch/internal/stats"
)

const (
	utilsCmdUse   = "utils <baseline.csv>"
	utilsCmdShort = "Print statistics over a sample file"
	utilsArgCount = 1

	minExtremes = 1
	maxExtremes = 29
)

var (
	// ErrInvalidExtremes is returned for a --min-max count out of range.
	ErrInvalidExtremes = fmt.Errorf("--min-max must be between %d and %d", minExtremes, maxExtremes)

	// ErrNothingToDo is returned when no output flag is set.
	ErrNothingToDo = errors.New("nothing to do, set at least one output flag")
)

type utilsCommand struct {
	globals *Globals

	extremes int
	stats    bool
	grid     bool
	window   int
}

// NewUtilsCommand creates the utils subcommand.
func NewUtilsCommand(g *Globals) *cobra.Command {
	uc := &utilsCommand{globals: g}

	cmd := &cobra.Command{
		Use:   utilsCmdUse,
		Short: utilsCmdShort,
		Args:  cobra.ExactArgs(utilsArgCount),
		RunE:  uc.run,
	}

	cmd.Flags().IntVar(&uc.extremes, "min-max", 0, fmt.Sprintf("print the N smallest and largest values (%d-%d)", minExtremes, maxExtremes))
	cmd.Flags().BoolVar(&uc.stats, "stats", false, "print mean and standard deviation")
	cmd.Flags().BoolVar(&uc.grid, "grid", false, "print the baseline window and bucket distributions")
	cmd.Flags().IntVarP(&uc.window, "window", "w", 0, "window size in weeks for --grid (default from config)")

	return cmd
}

func (uc *utilsCommand) run(cmd *cobra.Command, args []string) error {
	extremes := cmd.Flags().Changed("min-max")
	if extremes && (uc.extremes < minExtremes || uc.extremes > maxExtremes) {
		return fmt.Errorf("%w, got %d", ErrInvalidExtremes, uc.extremes)
	}
	if !extremes && !uc.stats && !uc.grid {
		return ErrNothingToDo
	}

	samples, err := uc.globals.loadSamples(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	values := sampleValues(samples)

	if extremes {
		mins, maxs := stats.MinMax(values, uc.extremes)
		if err := report.Extremes(out, mins, maxs); err != nil {
			return err
		}
	}

	if uc.stats {
		mean, stddev := stats.MeanStdDev(values)
		if err := report.Summary(out, len(values), mean, stddev); err != nil {
			return err
		}
	}

	if uc.grid {
		b, err := uc.globals.buildBaseline(samples, uc.window)
		if err != nil {
			return err
		}
		if err := report.Window(out, b.Window()); err != nil {
			return err
		}
		if err := report.Grid(out, b.Grid()); err != nil {
			return err
		}
	}

	return nil
}

func sampleValues(samples []baseline.Sample) []float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}

	return values
}
