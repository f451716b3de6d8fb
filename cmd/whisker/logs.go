package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/whisker/pkg/client"
	"github.com/cuemby/whisker/pkg/types"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Read the live log feed over gRPC",
}

var logsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream the log feed until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := logsClient(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		asJSON, _ := cmd.Flags().GetBool("json")
		showHeartbeats, _ := cmd.Flags().GetBool("heartbeats")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return c.Tail(ctx, func(rec types.LogRecord) error {
			if rec.Kind == types.KindHeartbeat && !showHeartbeats {
				return nil
			}
			return printRecord(rec, asJSON)
		})
	},
}

var logsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the most recent records",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := logsClient(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		count, _ := cmd.Flags().GetInt("count")
		asJSON, _ := cmd.Flags().GetBool("json")

		records, err := c.RecentLogs(count)
		if err != nil {
			return fmt.Errorf("failed to fetch history: %w", err)
		}
		for _, rec := range records {
			if err := printRecord(rec, asJSON); err != nil {
				return err
			}
		}
		return nil
	},
}

var logsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print log feed statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := logsClient(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		stats, err := c.Stats()
		if err != nil {
			return fmt.Errorf("failed to fetch stats: %w", err)
		}

		fmt.Printf("Records:     %d / %d\n", stats.TotalLogs, stats.MaxLogs)
		fmt.Printf("Subscribers: %d\n", stats.ActiveSubscribers)
		fmt.Printf("Oldest:      %s\n", formatTime(stats.OldestLog))
		fmt.Printf("Newest:      %s\n", formatTime(stats.NewestLog))
		return nil
	},
}

func init() {
	logsCmd.PersistentFlags().String("addr", "127.0.0.1:9000", "Address of the whisker gRPC API")

	logsTailCmd.Flags().Bool("json", false, "Print raw JSON records")
	logsTailCmd.Flags().Bool("heartbeats", false, "Also print heartbeat markers")

	logsHistoryCmd.Flags().Int("count", 100, "Number of records to fetch")
	logsHistoryCmd.Flags().Bool("json", false, "Print raw JSON records")

	logsCmd.AddCommand(logsTailCmd)
	logsCmd.AddCommand(logsHistoryCmd)
	logsCmd.AddCommand(logsStatsCmd)
}

func logsClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	return client.NewClient(addr)
}

func printRecord(rec types.LogRecord, asJSON bool) error {
	if asJSON {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(formatRecord(rec))
	return nil
}

// formatRecord renders a record as one human-readable line
func formatRecord(rec types.LogRecord) string {
	var b strings.Builder

	b.WriteString(rec.Timestamp.Local().Format(time.TimeOnly))
	b.WriteByte(' ')

	level := string(rec.Level)
	if level == "" {
		level = strings.ToUpper(string(rec.Kind))
	}
	fmt.Fprintf(&b, "%-8s ", level)

	if rec.Module != "" {
		b.WriteString(rec.Module)
		if rec.Line > 0 {
			fmt.Fprintf(&b, ":%d", rec.Line)
		}
		b.WriteString(" > ")
	}
	b.WriteString(rec.Message)

	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, rec.Fields[k])
	}
	return b.String()
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return ts.Local().Format(time.RFC3339)
}
