package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	var (
		count       int
		metricsAddr string
		noMigrate   bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Claim and process queued jobs until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			application, err := opts.application(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.OpenStore(ctx, !noMigrate); err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return application.RunWorkers(gctx, count)
			})
			if metricsAddr != "" {
				g.Go(func() error {
					return application.ServeMetrics(gctx, metricsAddr)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "number of concurrent workers (default worker.count)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address")
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip applying pending migrations")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		workers   int
		noMigrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the job API, optionally with embedded workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			application, err := opts.application(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.OpenStore(ctx, !noMigrate); err != nil {
				return err
			}
			return application.Serve(ctx, workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "embedded workers to run next to the API")
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip applying pending migrations")
	return cmd
}
