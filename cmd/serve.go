package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JPisOP007/jeevo/internal/api"
	"github.com/JPisOP007/jeevo/internal/app"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP answer API",
	Long: `Serve starts the HTTP API: POST /api/query answers questions,
POST /api/validate checks answers against the guidelines and GET /healthz
reports liveness. The server shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides configured server_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		addr := serveAddr
		if addr == "" {
			addr = a.Config.ServerAddr
		}

		server, err := api.NewServer(api.ServerConfig{
			Logger:         a.Logger,
			RAG:            a.RAG,
			RateLimitRPS:   a.Config.RateLimitRPS,
			RateLimitBurst: a.Config.RateLimitBurst,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}

		return server.Run(ctx, addr)
	})
}
