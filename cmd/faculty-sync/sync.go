// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/faculty-sync/internal/far"
	"github.com/mesh-intelligence/faculty-sync/internal/ingest"
	"github.com/mesh-intelligence/faculty-sync/internal/store"
	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "faculty-sync/0.1"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch users, publications, and grants into the local database",
	Long: `Sync walks the FAR users, publications, and grants sections page by
page, normalizes each record, and upserts it into the SQLite database.
Re-running against unchanged upstream data updates rows in place; with
--prune, activities that disappeared upstream are deleted afterwards.

An interrupt (Ctrl-C) stops fetching and lets in-flight writes finish,
so the database is never left mid-record. Every run lands in the
sync_runs audit table; see the runs command.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("base-url", "", "FAR API base URL (default "+far.DefaultBaseURL+")")
	syncCmd.Flags().Int("page-size", 0, "records per page (default 100)")
	syncCmd.Flags().Int("workers", 0, "concurrent normalize/write workers (default: CPU count)")
	syncCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	syncCmd.Flags().Int("retries", 0, "retry attempts per page request (default 3)")
	syncCmd.Flags().Bool("prune", false, "delete activities no longer present upstream")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := syncConfigFromFlags(cmd)

	client, err := far.NewClient(creds, cfg)
	if err != nil {
		return err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	st, err := store.Open(dbPath(), types.StoreConfig{MaxOpenConns: workers})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := ingest.New(client, st, cfg, os.Stdout).Run(ctx)
	if err != nil {
		return fmt.Errorf("sync interrupted: %w", err)
	}

	switch summary.Status {
	case ingest.RunFailed:
		return fmt.Errorf("sync failed: no section completed")
	case ingest.RunPartial:
		failed := 0
		for _, job := range summary.Jobs {
			if job.State == ingest.JobFailed {
				failed++
			}
		}
		return fmt.Errorf("sync incomplete: %d of %d sections failed", failed, len(summary.Jobs))
	}
	return nil
}

// syncConfigFromFlags resolves each setting from its flag, then the
// config file, then the built-in default.
func syncConfigFromFlags(cmd *cobra.Command) types.SyncConfig {
	baseURL, _ := cmd.Flags().GetString("base-url")
	if baseURL == "" {
		baseURL = viper.GetString("base-url")
	}

	pageSize, _ := cmd.Flags().GetInt("page-size")
	if pageSize == 0 {
		pageSize = viper.GetInt("page-size")
	}

	workers, _ := cmd.Flags().GetInt("workers")
	if workers == 0 {
		workers = viper.GetInt("workers")
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = viper.GetDuration("timeout")
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}

	retries, _ := cmd.Flags().GetInt("retries")
	if retries == 0 {
		retries = viper.GetInt("retries")
	}

	prune, _ := cmd.Flags().GetBool("prune")

	return types.SyncConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:    timeout,
			UserAgent:  defaultUserAgent,
			MaxRetries: retries,
		},
		BaseURL:  baseURL,
		PageSize: pageSize,
		Workers:  workers,
		Prune:    prune,
	}
}
