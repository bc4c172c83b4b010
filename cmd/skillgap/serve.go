package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/api"
	"github.com/kalambet/skillgap/internal/quota"
)

var (
	servePort int
	serveHost string
	serveMCP  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and optionally the MCP stdio server)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "listen address")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP over stdin/stdout")
}

func runServer(ctx context.Context) error {
	fmt.Fprintf(os.Stderr, "skillgap version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := newApp(ctx, cfg, log, appOptions{progress: os.Stderr})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			printWarning("closing storage: %v", err)
		}
	}()

	if cfg.Server.APIKey == "" {
		log.Warn("server.api_key is empty; authenticated routes are open")
	}

	handler := api.NewHandler(api.Deps{
		Analyzer: a.analyzer,
		Tables:   a.tables,
		Quota:    a.quota,
		Coach:    a.coach,
		Token:    cfg.Server.APIKey,
		Logger:   log,
	})

	janitor := quota.NewJanitor(a.quota, cfg.Quota.CleanupInterval, log)
	go janitor.Run(ctx)

	if serveMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Analyzer:    a.analyzer,
			Scorer:      a.scorer,
			Categorizer: a.categorizer,
			Coach:       a.coach,
			Tables:      a.tables,
			Version:     version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("MCP stdio server error", zap.Error(err))
			}
		}()
		log.Info("MCP server started (stdio transport)")
	}

	addr := net.JoinHostPort(serveHost, fmt.Sprint(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
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
