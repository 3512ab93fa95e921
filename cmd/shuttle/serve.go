package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/shuttle/internal/aggregate"
	"github.com/kalambet/shuttle/internal/api"
	"github.com/kalambet/shuttle/internal/config"
	"github.com/kalambet/shuttle/internal/importer"
	"github.com/kalambet/shuttle/internal/inbox"
	"github.com/kalambet/shuttle/internal/session"
	"github.com/kalambet/shuttle/internal/storage"
	"github.com/kalambet/shuttle/internal/syncstatus"
	"github.com/kalambet/shuttle/internal/trigger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the shuttle server (foreground)",
	Long:  "Run the share endpoint, the inbox importer, and the MCP stdio server until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Drain the shared inbox into local storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		return runImport(watch)
	},
}

func init() {
	importCmd.Flags().Bool("watch", false, "keep draining on inbox changes until interrupted")
}

func setupLogging(cfg config.Config) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// wakeTrigger picks how persisted entries announce themselves: an HTTP
// ping when a wake endpoint is configured, otherwise the registered
// activation address through the platform opener.
func wakeTrigger(cfg config.Config) trigger.Trigger {
	if cfg.Share.WakeEndpoint != "" {
		return trigger.HTTP{Endpoint: cfg.Share.WakeEndpoint}
	}
	if cfg.Share.ActivationURL != "" {
		return trigger.Scheme{URL: cfg.Share.ActivationURL}
	}
	return trigger.Noop{}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "shuttle version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if cfg.API.Token == "" {
		return fmt.Errorf("no API token configured; set SHUTTLE_API_TOKEN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The shared container being unreachable does not stop the server:
	// sessions still answer, they just cannot persist.
	in, err := inbox.Open(cfg.Inbox.ContainerDir)
	if err != nil {
		slog.Warn("shared container unavailable, shares will not persist", "dir", cfg.Inbox.ContainerDir, "error", err)
		in = nil
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	tracker := syncstatus.NewTracker()

	var writer session.RecordWriter
	var payloads aggregate.PayloadSaver
	if in != nil {
		writer = in
		payloads = in
	}
	sess := session.New(aggregate.New(payloads), writer, wakeTrigger(cfg)).WithTimeout(cfg.Share.Timeout())

	// Consumer side: drain the inbox on poll ticks, filesystem events,
	// and /wake nudges.
	if in != nil {
		imp := importer.New(in, store, tracker, cfg.Storage.PayloadDir(), cfg.Inbox.PollDuration())
		tracker.OnTrigger(imp.Nudge)
		go imp.Run(ctx)
	}

	deps := api.Deps{
		Session: sess,
		Inbox:   in,
		Store:   store,
		Status:  tracker,
		Token:   cfg.API.Token,
	}
	handler := api.NewHandler(deps)

	// MCP server over stdio in a goroutine, same process as HTTP.
	stdioSrv := server.NewStdioServer(api.NewMCPServer(api.MCPDeps{Deps: deps}))
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "shuttle listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(watch bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	in, err := inbox.Open(cfg.Inbox.ContainerDir)
	if err != nil {
		return fmt.Errorf("opening inbox: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	imp := importer.New(in, store, syncstatus.NewTracker(), cfg.Storage.PayloadDir(), cfg.Inbox.PollDuration())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watch {
		printStep("Watching %s", cfg.Inbox.ContainerDir)
		imp.Run(ctx)
		return nil
	}

	n, err := imp.RunOnce(ctx)
	if err != nil {
		return err
	}
	printSuccess("Imported %d entries", n)
	return nil
}
