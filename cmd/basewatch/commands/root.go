package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// Execute runs the command line and flushes the logger whether or not the
// command failed.
func Execute(ctx context.Context) error {
	g := &Globals{}

	return execute(ctx, newRootCommand(g), g)
}

func execute(ctx context.Context, cmd *cobra.Command, g *Globals) error {
	defer g.Sync()

	return cmd.ExecuteContext(ctx)
}

// NewRootCommand creates the basewatch command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&Globals{})
}

func newRootCommand(g *Globals) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "basewatch",
		Short: "Seasonal weekly baseline for hourly metrics",
		Long: `basewatch learns a 7x24 hourly baseline from the most recent complete
weeks of a metric and flags values above a chosen quantile.

Commands:
  poc       Sweep thresholds against labelled positives and negatives
  utils     Print extremes, statistics and bucket distributions
  plot      Render time series, histogram and bucket charts
  import    Load a CSV file into the sample store
  serve     Serve the baseline over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.ConfigPath, "config", "c", "", "config file (default $BASEWATCH_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewPocCommand(g))
	rootCmd.AddCommand(NewUtilsCommand(g))
	rootCmd.AddCommand(NewPlotCommand(g))
	rootCmd.AddCommand(NewImportCommand(g))
	rootCmd.AddCommand(NewServeCommand(g))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "basewatch %s\n", Version)
		},
	}
}
