package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessly/internal/app"
	"assessly/internal/db"
	"assessly/internal/ingest"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "assessly",
		Short:        "Timed multiple-choice practice sessions with bulk question import",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.String("db-driver", "sqlite", "Database driver (sqlite, postgres)")
	pf.String("db", "assessly.db", "SQLite path or Postgres DSN")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	serve := serveCmd()
	root.AddCommand(serve, ingestCmd(), trendCmd(), exportCmd())

	// Bare `assessly` runs the server.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.Duration("tick-interval", time.Second, "Session countdown tick")
	f.Duration("session-retention", 10*time.Minute, "How long finished sessions stay readable")
	f.Int("default-question-count", 10, "Questions per session when the request omits count")
	f.Int("default-seconds-per-question", 60, "Time budget per question when the request omits it")
	f.Int("import-rate-limit-per-minute", 30, "Import requests allowed per client per minute")
	return cmd
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Import a question file into the bank",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
	f := cmd.Flags()
	f.StringP("format", "f", "", "Input format (outline, records, workbook); guessed from the extension when empty")
	f.StringP("category", "c", "", "Category for questions that do not name one")
	return cmd
}

func trendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Print the trailing score trend",
		RunE:  runTrend,
	}
	cmd.Flags().IntP("window", "w", 10, "Number of most recent results")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export result history as an Excel workbook",
		RunE:  runExport,
	}
	cmd.Flags().StringP("output", "o", "results.xlsx", "Output file path (- for stdout)")
	return cmd
}

func loadConfig(cmd *cobra.Command) (app.Config, error) {
	v := app.NewViper()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return app.Config{}, fmt.Errorf("bind flags: %w", err)
	}
	cfg, err := app.LoadConfig(v)
	if err != nil {
		return app.Config{}, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg app.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	switch cfg.LogFormat {
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// openServices opens the configured database and wires the service graph.
// The returned func releases both.
func openServices(ctx context.Context, cfg app.Config) (*app.Services, func(), error) {
	conn, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN, cfg.PostgresPool())
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.NewServices(ctx, cfg, conn, slog.Default())
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return svc, func() {
		svc.Close()
		_ = conn.Close()
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeAll, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.NewRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", cfg.HTTPAddr,
			"env", cfg.AppEnv,
			"db_driver", cfg.DBDriver,
			"tick_interval", cfg.TickInterval,
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			return server.Close()
		}
		return nil
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := args[0]

	formatName, _ := cmd.Flags().GetString("format")
	if formatName == "" {
		formatName = ingest.FormatFromFilename(path)
	}
	format, err := ingest.ParseFormat(formatName)
	if err != nil {
		return err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	category, _ := cmd.Flags().GetString("category")

	svc, closeAll, err := openServices(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := svc.Ingest.Import(cmd.Context(), ingest.Batch{Format: format, Body: body, CategoryID: category})
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "accepted %d, rejected %d\n", report.Accepted, len(report.Rejected))
	for _, rej := range report.Rejected {
		fmt.Fprintf(out, "  item %d: %s\n", rej.Index, rej.Reason)
	}
	return nil
}

func runTrend(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	window, _ := cmd.Flags().GetInt("window")

	svc, closeAll, err := openServices(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	trend, err := svc.Reports.Trend(cmd.Context(), window)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(trend.Points) == 0 {
		fmt.Fprintln(out, "no results yet")
		return nil
	}
	for _, p := range trend.Points {
		fmt.Fprintf(out, "%s\t%3d%%\n", p.ResultID, p.ScorePercent)
	}
	fmt.Fprintf(out, "mean\t%.1f%%\n", trend.Mean)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("output")

	svc, closeAll, err := openServices(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	data, err := svc.Reports.ExportResultsExcel(cmd.Context())
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" && outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	slog.Info("exported results", "path", outPath, "bytes", len(data))
	return nil
}
