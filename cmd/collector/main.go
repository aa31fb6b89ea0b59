// The collector binary runs next to the scrapers. It watches their output
// files and forwards new loads to the management server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evanhu96/load-management-app/internal/collector"
	"github.com/evanhu96/load-management-app/internal/conf"
	"github.com/evanhu96/load-management-app/internal/logger"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "loads-collector",
		Short: "Watches scraper output files and forwards loads to the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.LoadCollector(configPath)
			if err != nil {
				return err
			}
			log := logger.NewSlogLogger(os.Stdout, logger.ParseLevel(settings.LogLevel), nil)

			client := collector.NewClient(settings.ServerURL, settings.HTTPTimeout.Std())
			c := collector.New(settings, client, log)

			log.Info("collector starting",
				logger.String("server_url", settings.ServerURL),
				logger.Int("watch_paths", len(settings.WatchPaths)))
			return c.Run(cmd.Context())
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Test connectivity to the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.LoadCollector(configPath)
			if err != nil {
				return err
			}

			client := collector.NewClient(settings.ServerURL, settings.HTTPTimeout.Std())
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if err := client.Health(ctx); err != nil {
				return fmt.Errorf("server unreachable at %s: %w", settings.ServerURL, err)
			}
			fmt.Printf("server reachable at %s\n", settings.ServerURL)
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
