package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/boxkite/internal/config"
	"github.com/ehrlich-b/boxkite/internal/sensitive"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <string>...",
		Short: "Report which argument strings reference sensitive files",
		Long:  "Runs the sensitive-path token scanner over each string, the same check applied to command arguments. Exits 1 when anything is flagged.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			filter := sensitive.FromSettings(settings.SensitivePaths)

			flagged := false
			for _, candidate := range args {
				if filter.IsCandidateSensitive(candidate) {
					fmt.Printf("sensitive  %s\n", candidate)
					flagged = true
				} else {
					fmt.Printf("ok         %s\n", candidate)
				}
			}
			if flagged {
				os.Exit(1)
			}
			return nil
		},
	}
}
