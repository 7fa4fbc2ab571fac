package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fulvian/devstream/internal/api"
	"github.com/fulvian/devstream/internal/app"
	"github.com/fulvian/devstream/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Run the Model Context Protocol server on stdin/stdout.

Logs are written to stderr. With --http the HTTP API is served
alongside on http.addr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var httpCmd = &cobra.Command{
	Use:   "http",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runHTTP,
}

func init() {
	serveCmd.Flags().Bool("http", false, "also serve the HTTP API")
	httpCmd.Flags().String("addr", "", "listen address (overrides http.addr)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(httpCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcp.NewServer(mcp.Deps{
		Store:     a.Store,
		Searcher:  a.Searcher,
		Assembler: a.Assembler,
		Memory:    a.Memory,
		Indexer:   a.Indexer,
		Config:    a.Config,
		Logger:    &a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	withHTTP, _ := cmd.Flags().GetBool("http")
	if !withHTTP {
		return server.Serve(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	srv := newHTTPServer(a.Config.HTTP.Addr, apiRouter(a))
	g.Go(func() error {
		// stdin closing ends the session, take the HTTP server down with it
		defer stop()
		return server.Serve(ctx)
	})
	g.Go(func() error {
		return listen(srv)
	})
	g.Go(func() error {
		<-ctx.Done()
		return shutdown(srv)
	})
	return g.Wait()
}

func runHTTP(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = a.Config.HTTP.Addr
	}
	srv := newHTTPServer(addr, apiRouter(a))

	ctx, cancel := signalContext()
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info().Str("addr", addr).Msg("http server starting")
		return listen(srv)
	})
	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info().Msg("shutting down")
		return shutdown(srv)
	})
	return g.Wait()
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func apiRouter(a *app.App) http.Handler {
	return api.NewRouter(api.Deps{
		Store:     a.Store,
		Searcher:  a.Searcher,
		Assembler: a.Assembler,
		Memory:    a.Memory,
		Config:    a.Config,
		Provider:  a.Embedder.Provider(),
	}, a.Config.HTTP.APIKey, a.Logger)
}
