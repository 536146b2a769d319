/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/commtray/commtrayd/internal/config"
	"github.com/commtray/commtrayd/internal/logging"
	"github.com/commtray/commtrayd/internal/metrics"
	sinksqlite "github.com/commtray/commtrayd/internal/sink/sqlite"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List open notifications",
	Long:  `List the notifications currently published by the daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		store, err := sinksqlite.New(cfg.Storage.NotificationsDB, metrics.New(prometheus.NewRegistry()), logging.Noop())
		if err != nil {
			return fmt.Errorf("open notification store: %w", err)
		}
		defer func() { _ = store.Shutdown() }()

		records, err := store.OpenRecords()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			cmd.Println("No open notifications")
			return nil
		}

		for _, rec := range records {
			state := "shown"
			if rec.Hidden {
				state = "hidden"
			}
			cmd.Printf("%6d  %-32s  %-6s  %3d  %s  %s\n",
				rec.ID, rec.Category, state, rec.ItemCount,
				rec.Timestamp.Format("2006-01-02 15:04"), rec.Summary)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
