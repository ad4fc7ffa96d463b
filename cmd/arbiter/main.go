// Package main is the entry point for the arbiter binary, the
// decision-support API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/arbiterhq/arbiter/pkg/api"
	"github.com/arbiterhq/arbiter/pkg/config"
	"github.com/arbiterhq/arbiter/pkg/llm"
	"github.com/arbiterhq/arbiter/pkg/logging"
	"github.com/arbiterhq/arbiter/pkg/telemetry"
)

const serviceName = "arbiter"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for arbiter.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arbiter",
		Short: "Decision-support API backed by an LLM provider",
		Long: `An HTTP service that turns decision-making text into structured guidance:
candidate options, weighted criteria, conversational refinement, and
implementation plans. All language understanding is delegated to an
OpenAI-compatible provider; callers supply their own API key per request.`,
		RunE: runServe,
	}

	rootCmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.Flags().String("listen", "", "Listen address (overrides config)")
	rootCmd.Flags().StringP("log-level", "l", "", "Log level (debug, info, warn, error; overrides config)")
	rootCmd.Flags().Bool("pretty", false, "Enable pretty console logging")

	return rootCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Address = listen
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		cfg.Logging.Pretty = true
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
	slog.SetDefault(logger)

	logger.Info("Starting arbiter",
		"config", configPath,
		"provider", cfg.Provider.BaseURL,
		"default_model", cfg.Provider.DefaultModel,
	)

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("Telemetry shutdown error", "error", err)
		}
	}()

	client := llm.NewOpenAIClient(cfg.Provider.BaseURL, logger)
	apiServer := api.NewServer(api.Options{
		DefaultModel: cfg.Provider.DefaultModel,
		Client:       client,
		Logger:       logger,
	})

	server := startServer(cfg.Server.Address, apiServer.Handler(), logger)
	waitForShutdown(server, logger)
	return nil
}

func startServer(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Handler: otelhttp.NewHandler(handler, serviceName),
		// No write timeout: streamed completions stay open for as long as
		// the provider keeps producing tokens.
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("Failed to bind listener", "addr", addr, "error", err)
		os.Exit(1)
	}

	// Log the actual resolved address (useful when addr is :0)
	logger.Info("Server listening", "addr", listener.Addr().String())

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(server *http.Server, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	logger.Info("Shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
}
