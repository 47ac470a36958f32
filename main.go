package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"hope/cmd"
	"hope/internal/logging"
	"hope/internal/pianobar"
	"hope/internal/server"
	"hope/pkg/deps"
)

func main() {
	// ─── Step 1: Signal handling ───
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// The first signal starts shutdown; a second one gets the default action.
	context.AfterFunc(ctx, stop)

	// ─── Step 2: Parse CLI arguments and run ───
	if err := cmd.Execute(ctx, run); err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR]", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *cmd.Config) error {
	level, err := cfg.Settings.Level()
	if err != nil {
		return err
	}
	logger := logging.NewLogger(level, os.Stderr)

	if cfg.ClientMode() {
		logger.Debugf("Handling %s eventcmd", cfg.EventCmd)
		if err := runClient(ctx, logger, cfg); err != nil {
			logger.WithError(err).WithField("eventcmd", cfg.EventCmd).Error("Failed to relay event")
			return err
		}
		return nil
	}

	logger.Debug("No eventcmd to handle, running main program")
	return runServer(ctx, logger, cfg)
}

// runClient reads pianobar's info block from stdin and relays it.
func runClient(ctx context.Context, logger *logrus.Logger, cfg *cmd.Config) error {
	info, err := pianobar.ReadInfo(os.Stdin)
	if err != nil {
		return err
	}
	event := pianobar.NewEvent(cfg.EventCmd, info)
	return server.NewClient(cfg.Settings.Socket, logger).Send(ctx, event)
}

// runServer listens until a signal arrives or a component fails. The socket
// file is removed on the way out.
func runServer(ctx context.Context, logger *logrus.Logger, cfg *cmd.Config) error {
	deps.NewChecker(deps.Pianobar).Warn(logger)

	recorder := server.NewRecorder()
	consumer := server.MultiConsumer(server.LogConsumer(logger), recorder)

	socketSrv := server.NewSocketServer(cfg.Settings.Socket, consumer, logger)
	if err := socketSrv.Start(); err != nil {
		return err
	}
	defer socketSrv.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return socketSrv.Serve(gctx)
	})

	if addr := cfg.Settings.HTTPAddr; addr != "" {
		api := server.NewAPI(recorder, consumer, logger)
		httpSrv := &http.Server{
			Addr:              addr,
			Handler:           server.SetupRouter(api),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Infof("Inspection API listening on http://%s", addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("inspection API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	logger.Debug("Shutting down")
	return err
}
