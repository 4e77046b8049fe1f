package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/savegress/basewatch/internal/alerts"
	"github.com/savegress/basewatch/internal/api"
)

const (
	serveCmdUse   = "serve"
	serveCmdShort = "Serve the baseline over HTTP"

	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

type serveCommand struct {
	globals *Globals

	db     string
	csv    string
	addr   string
	window int
}

// NewServeCommand creates the serve subcommand.
func NewServeCommand(g *Globals) *cobra.Command {
	sc := &serveCommand{globals: g}

	cmd := &cobra.Command{
		Use:   serveCmdUse,
		Short: serveCmdShort,
		Long: `Serve loads the sample store, optionally seeding it from a CSV file,
builds the baseline and exposes it over HTTP until interrupted.`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().StringVar(&sc.db, "db", "", "sample store path (default from config)")
	cmd.Flags().StringVar(&sc.csv, "csv", "", "CSV file to record into the store before starting")
	cmd.Flags().StringVar(&sc.addr, "addr", "", "listen address (default :<server.port>)")
	cmd.Flags().IntVarP(&sc.window, "window", "w", 0, "window size in weeks (default from config)")

	return cmd
}

func (sc *serveCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := sc.globals.Config()
	if err != nil {
		return err
	}
	logger, err := sc.globals.Logger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sc.globals.openStore(sc.db)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	if sc.csv != "" {
		seed, err := sc.globals.loadSamples(sc.csv)
		if err != nil {
			return err
		}
		if err := store.Record(ctx, seed); err != nil {
			return err
		}
	}

	if cfg.Storage.Retention > 0 {
		if _, err := store.Cleanup(ctx, time.Now().Add(-cfg.Storage.Retention)); err != nil {
			return err
		}
	}

	samples, err := store.All(ctx)
	if err != nil {
		return err
	}

	b, err := sc.globals.buildBaseline(samples, sc.window)
	if err != nil {
		return err
	}

	alertLog := alerts.NewLog(cfg.Alerts.Recent, alerts.WithLogger(logger))

	server, err := api.NewServer(cfg, b, alertLog, store, logger)
	if err != nil {
		return err
	}

	addr := sc.addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Server.Port)
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("basewatch API listening", zap.String("addr", addr), zap.String("environment", cfg.Server.Environment))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down basewatch")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("basewatch stopped")

	return nil
}
