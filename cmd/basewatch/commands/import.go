package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/savegress/basewatch/internal/storage"
)

const (
	importCmdUse   = "import <samples.csv>"
	importCmdShort = "Load a sample file into the sample store"
	importArgCount = 1
)

type importCommand struct {
	globals *Globals

	db string
}

// NewImportCommand creates the import subcommand.
func NewImportCommand(g *Globals) *cobra.Command {
	ic := &importCommand{globals: g}

	cmd := &cobra.Command{
		Use:   importCmdUse,
		Short: importCmdShort,
		Args:  cobra.ExactArgs(importArgCount),
		RunE:  ic.run,
	}

	cmd.Flags().StringVar(&ic.db, "db", "", "sample store path (default from config)")

	return cmd
}

func (ic *importCommand) run(cmd *cobra.Command, args []string) error {
	samples, err := ic.globals.loadSamples(args[0])
	if err != nil {
		return err
	}

	store, err := ic.globals.openStore(ic.db)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	if err := store.Record(ctx, samples); err != nil {
		return err
	}

	meta, err := store.Meta(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d samples into %s\n", len(samples), store.Path())
	printMeta(out, meta)

	return nil
}

func printMeta(w io.Writer, meta *storage.Meta) {
	fmt.Fprintf(w, "Store holds %d samples from %s to %s\n",
		meta.Samples,
		meta.First.Format(time.DateTime),
		meta.Last.Format(time.DateTime),
	)
}
