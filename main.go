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

	"stock-forecast/config"
	"stock-forecast/internal/api"
	"stock-forecast/observability"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stock-forecast",
	Short: "Technical analysis and price forecasting dashboard",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine; the environment is used as is
		_ = godotenv.Load()
		return nil
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		return serve(cmd.Context(), cfg)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze TICKER",
	Short: "Analyze one ticker and print the summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		horizon, _ := cmd.Flags().GetInt("horizon")
		csvPath, _ := cmd.Flags().GetString("csv")
		pdfPath, _ := cmd.Flags().GetString("pdf")
		return analyze(cmd.Context(), cfg, cmd.OutOrStdout(), args[0], horizon, csvPath, pdfPath)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides HTTP_ADDR)")

	analyzeCmd.Flags().Int("horizon", 30, "forecast horizon in business days")
	analyzeCmd.Flags().String("csv", "", "also write the forecast CSV to this path")
	analyzeCmd.Flags().String("pdf", "", "also write the PDF report to this path")

	rootCmd.AddCommand(serveCmd, analyzeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := observability.InitLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	observability.InitMetrics()
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	application, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}

	handler := api.NewHandler(application, cfg)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		// Downloads re-run the analysis, so allow for the request timeout
		WriteTimeout: cfg.HTTP.RequestTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.Info("starting server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			application.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	observability.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err.Error())
	}
	application.Shutdown(shutdownCtx)
	observability.Info("server stopped")
	return nil
}
