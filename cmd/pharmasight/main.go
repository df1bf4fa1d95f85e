package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pharmasight/pharmasight/cmd/pharmasight/cli"
	"github.com/pharmasight/pharmasight/internal/app"
	"github.com/pharmasight/pharmasight/internal/platform/cache"
	"github.com/pharmasight/pharmasight/internal/upstream"
)

var version = "dev"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		slog.Default().Error("pharmasight", slog.Any("error", err))
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pharmasight",
		Short:         "Comparable-period pharmacy dashboard API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Println(version)
			},
		},
		cli.NewJobsCommand(openJobs),
		cli.NewCacheCommand(openCache),
	)
	return root
}

func openJobs() (*cli.JobsCLI, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	opt, err := cfg.QueueRedis()
	if err != nil {
		return nil, err
	}
	return cli.NewJobsCLI(opt), nil
}

func openCache(ctx context.Context) (cli.Bumper, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	ttl := cfg.UpstreamCacheTTL
	if ttl <= 0 {
		// Bumping must work even on replicas that read with caching off.
		ttl = time.Second
	}
	return upstream.NewCache(client, ttl), func() { _ = client.Close() }, nil
}
