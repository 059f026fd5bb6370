package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ganot/scanpoint/internal/station"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drain the pending scan queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scans waiting for sync, oldest first",
	RunE:  runQueueList,
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Sync pending scans now and report the outcome",
	RunE:  runQueueDrain,
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueDrainCmd)
}

func runQueueList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog := newLogger(cfg, os.Stderr)
	defer closeLog()

	st, closeDB, err := station.Build(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()
	defer st.Close()

	items, err := st.Pending(cmd.Context())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tACTIVITY\tCAPTURED\tATTEMPTS\tLAST ERROR")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			item.ID, item.Code, item.ActivityID,
			item.CapturedAt.Format(time.RFC3339), item.Attempts, item.LastError)
	}
	return w.Flush()
}

func runQueueDrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog := newLogger(cfg, os.Stderr)
	defer closeLog()

	st, closeDB, err := station.Build(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()
	defer st.Close()

	res, err := st.Drain(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "synced: %d\nalready complete: %d\ndiscarded: %d\nremaining: %d\n",
		res.Synced, res.AlreadyComplete, res.Discarded, res.Remaining)
	if res.Halted != "" {
		fmt.Fprintf(out, "halted: %s\n", res.Halted)
	}
	return nil
}
