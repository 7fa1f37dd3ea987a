// Command gateway runs the OpenAI-compatible inference gateway: backend
// registry, request-kind dispatch, and RAG orchestration behind one
// HTTP process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/llamaedge/nexus-gateway/internal/config"
	"github.com/llamaedge/nexus-gateway/pkg/server"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	setupLogging()

	root := &cobra.Command{
		Use:   "gateway",
		Short: "OpenAI-compatible inference gateway",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the TOML config file")

	root.AddCommand(serveCmd(), configCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	out := os.Stderr
	var w zerolog.ConsoleWriter
	if isatty.IsTerminal(out.Fd()) {
		w = zerolog.ConsoleWriter{Out: colorable.NewColorable(out), TimeFormat: time.RFC3339}
	} else {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	log.Logger = log.Output(w)
}

func serveCmd() *cobra.Command {
	var ragEnable bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			srv, err := buildServeTarget(ctx, configPath, ragEnable)
			if err != nil {
				return err
			}
			return run(ctx, srv)
		},
	}
	cmd.Flags().BoolVar(&ragEnable, "rag-enable", false, "force-enable RAG even if the config file disables it")
	return cmd
}

// buildServeTarget loads configPath and applies the --rag-enable override
// before the config is consumed by server.NewWithConfig, so the override
// actually reaches the router-building decision instead of a finished Server.
func buildServeTarget(ctx context.Context, configPath string, ragEnable bool) (*server.Server, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if ragEnable {
		cfg.RAG.Enable = true
	}
	return server.NewWithConfig(ctx, cfg)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration utilities"}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configPath); err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(server.Version)
		},
	}
}

func run(ctx context.Context, srv *server.Server) error {
	httpServer := &http.Server{
		Addr:         srv.BindAddr,
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.BindAddr).Msg("gateway listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
