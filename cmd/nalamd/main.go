// Package main runs the nalam health engine daemon: the local store, the
// background sync coordinator and the emergency dispatcher, fronted by a
// localhost control API.
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

	"go.uber.org/zap"

	"github.com/jayaraj-kannan/nalam-sub001/internal/api"
	"github.com/jayaraj-kannan/nalam-sub001/internal/config"
	"github.com/jayaraj-kannan/nalam-sub001/internal/connectivity"
	"github.com/jayaraj-kannan/nalam-sub001/internal/db"
	"github.com/jayaraj-kannan/nalam-sub001/internal/emergency"
	"github.com/jayaraj-kannan/nalam-sub001/internal/logging"
	syncpkg "github.com/jayaraj-kannan/nalam-sub001/internal/sync"
	"github.com/jayaraj-kannan/nalam-sub001/internal/sync/queue"
	"github.com/jayaraj-kannan/nalam-sub001/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "nalamd:", err)
		os.Exit(1)
	}
}

func run() error {
	opts, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := logging.New(opts.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(opts.DataDir)
	if err != nil {
		return err
	}
	store := db.NewStore(conn, logger)
	defer store.Close()

	// A store that cannot initialize is fatal; nothing below can run
	// without durable local persistence.
	if err := store.Init(ctx); err != nil {
		return err
	}

	client := api.NewClient(opts.APIBaseURL, nil)
	counters := telemetry.NewCounters()

	monitor := connectivity.NewMonitor(opts.ProbeURL, opts.ProbeInterval, nil, logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	q := queue.New(store, logger)
	coord, err := syncpkg.NewCoordinator(ctx, store, q, monitor, client, counters, opts.SyncInterval, logger)
	if err != nil {
		return err
	}
	defer coord.Close()
	coord.StartAutoSync(ctx)

	locator := emergency.NewHTTPLocator(opts.LocationURL, opts.LocationTimeout, nil, logger)
	sms := emergency.NewURIComposer(opts.SMSOpener, logger)
	dispatcher := emergency.NewDispatcher(store, client, coord, monitor, locator, sms, counters, logger)

	if opts.UserID != "" {
		if err := dispatcher.Init(ctx, opts.UserID); err != nil {
			return err
		}
	}

	srv := newServer(opts.UserID, store, coord, dispatcher, counters, logger)
	httpSrv := &http.Server{
		Addr:    opts.ListenAddr,
		Handler: srv.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control API listening", zap.String("addr", opts.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
