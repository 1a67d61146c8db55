package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/boxkite/internal/audit"
	"github.com/ehrlich-b/boxkite/internal/config"
)

func eventsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent sandbox launches from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			path, err := settings.AuditPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				fmt.Println("no audit log (enable audit in config to record launches)")
				return nil
			}

			store, err := audit.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.Recent(limit)
			if err != nil {
				return err
			}
			for _, ev := range events {
				fmt.Printf("%s  %-16s  %s  %s\n",
					ev.Time.Local().Format("2006-01-02 15:04:05"),
					ev.PolicyMode, ev.Cwd, strings.Join(ev.Command, " "))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	return cmd
}
