package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/savegress/basewatch/internal/evaluate"
	"github.com/savegress/basewatch/internal/plot"
	"github.com/savegress/basewatch/internal/report"
)

const (
	pocCmdUse   = "poc <baseline.csv> <positives.csv> <negatives.csv>"
	pocCmdShort = "Sweep alert thresholds against labelled samples"
	pocArgCount = 3
)

type pocCommand struct {
	globals *Globals

	window int
	step   float64
	roc    string
}

// NewPocCommand creates the poc subcommand. It builds a baseline from the
// first file and reports the true and false positive ratios of the labelled
// samples at every threshold.
func NewPocCommand(g *Globals) *cobra.Command {
	pc := &pocCommand{globals: g}

	cmd := &cobra.Command{
		Use:   pocCmdUse,
		Short: pocCmdShort,
		Args:  cobra.ExactArgs(pocArgCount),
		RunE:  pc.run,
	}

	cmd.Flags().IntVarP(&pc.window, "window", "w", 0, "window size in weeks (default from config)")
	cmd.Flags().Float64Var(&pc.step, "step", 0, "threshold step (default from config)")
	cmd.Flags().StringVar(&pc.roc, "roc", "", "write the ROC curve to this HTML file")

	return cmd
}

func (pc *pocCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := pc.globals.Config()
	if err != nil {
		return err
	}
	logger, err := pc.globals.Logger()
	if err != nil {
		return err
	}

	history, err := pc.globals.loadSamples(args[0])
	if err != nil {
		return err
	}
	positives, err := pc.globals.loadSamples(args[1])
	if err != nil {
		return err
	}
	negatives, err := pc.globals.loadSamples(args[2])
	if err != nil {
		return err
	}

	b, err := pc.globals.buildBaseline(history, pc.window)
	if err != nil {
		return err
	}

	step := pc.step
	if step == 0 {
		step = cfg.Evaluation.Step
	}

	result, err := evaluate.Sweep(cmd.Context(), b, positives, negatives, step)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	logger.Info("sweep finished",
		zap.Int("thresholds", len(result.Points)),
		zap.Float64("eer_threshold", result.EqualError.Threshold),
	)

	out := cmd.OutOrStdout()

	if err := report.Sweep(out, result); err != nil {
		return err
	}

	fmt.Fprintf(out, "Positives: %d\nNegatives: %d\n", result.Positives, result.Negatives)

	if pc.roc == "" {
		return nil
	}

	chart, err := plot.ROC(result)
	if err != nil {
		return err
	}

	if err := writePage(pc.roc, plot.NewPage("basewatch ROC").Add(chart)); err != nil {
		return err
	}

	fmt.Fprintf(out, "ROC curve written to %s\n", pc.roc)

	return nil
}
