package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TFMV/bdt/api"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Serve the comparison engine over HTTP",
		Long: `Start an HTTP server exposing GET /health, GET /version and
POST /api/v1/compare. Compare requests may only read files under the
data directory; relative paths are resolved against it. The server stops
gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "port to listen on")
	cmd.Flags().Int("max-rows", 20, "default maximum number of differences returned (0 = all)")
	cmd.Flags().Bool("access-log", false, "log every request")
	cmd.Flags().String("data-dir", ".", "directory compare requests may read from")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(api.ServerOptions{
		Port:         strconv.Itoa(a.cfg.Server.Port),
		RequestLog:   a.cfg.Server.AccessLog,
		DataDir:      a.cfg.Server.DataDir,
		BatchSize:    a.cfg.Reader.BatchSize,
		MaxRowsShown: a.cfg.Compare.MaxRowsShown,
		Logger:       a.log,
	})
	return server.Start(ctx)
}
