// Package main is the operator CLI for reconciling the local cache with the remote store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/assoc-site/backend/config"
	"github.com/assoc-site/backend/internal/app"
	"github.com/assoc-site/backend/internal/syncer"
)

var (
	a       *app.App
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "synctl",
		Short:        "Reconcile the site cache with the remote store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.Close()
				_ = a.Logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall deadline for the command")

	rootCmd.AddCommand(entitiesCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(drainCmd())
	rootCmd.AddCommand(deadCmd())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func initApp(ctx context.Context) error {
	logger := app.NewLogger()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Redis.Enabled() {
		return fmt.Errorf("synctl needs REDIS_ADDR: an in-memory cache is private to one process")
	}
	cfg.Database.AutoMigrate = false
	a, err = app.New(ctx, cfg, logger)
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// selected returns the named syncers, or all of them when names is empty.
func selected(names []string) ([]syncer.Syncer, error) {
	if len(names) == 0 {
		return a.Syncers.All(), nil
	}
	out := make([]syncer.Syncer, 0, len(names))
	for _, n := range names {
		s, ok := a.Syncers.Get(n)
		if !ok {
			return nil, fmt.Errorf("unknown entity %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func entitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the synced entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range a.Syncers.All() {
				fmt.Println(s.Name())
			}
			return nil
		},
	}
}

func downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download [entity...]",
		Short: "Replace the cache with the remote rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncers, err := selected(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			failed := 0
			results := make([]syncer.DownloadResult, 0, len(syncers))
			for _, s := range syncers {
				res, err := s.Download(ctx)
				if err != nil {
					failed++
					a.Logger.Error("download failed", zap.String("entity", s.Name()), zap.Error(err))
				}
				results = append(results, res)
			}
			if err := printJSON(results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, len(syncers))
			}
			return nil
		},
	}
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [entity...]",
		Short: "Push cached records the remote store does not have",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncers, err := selected(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			failed := 0
			summaries := make([]syncer.UploadSummary, 0, len(syncers))
			for _, s := range syncers {
				sum, err := s.Upload(ctx)
				if err != nil {
					failed++
					a.Logger.Error("upload failed", zap.String("entity", s.Name()), zap.Error(err))
				}
				summaries = append(summaries, sum)
			}
			if err := printJSON(summaries); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(syncers))
			}
			return nil
		},
	}
}

func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Replay the queued outbox mutations once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := a.Drainer.DrainOnce(ctx)
			if err != nil {
				return fmt.Errorf("drain: %w", err)
			}
			return printJSON(res)
		},
	}
}

func deadCmd() *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "dead",
		Short: "Show dead-lettered outbox mutations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dead, err := a.Outbox.Dead(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read dead letters: %w", err)
			}
			return printJSON(dead)
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 50, "Maximum entries to show")
	return cmd
}
