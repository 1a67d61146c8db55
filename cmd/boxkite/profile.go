package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/boxkite/internal/seatbelt"
)

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile [flags] [-- <command> [args...]]",
		Short: "Print the compiled sandbox profile and parameter bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, filter, pol, cwd, err := setup(cmd)
			if err != nil {
				return err
			}

			command := args
			if len(command) == 0 {
				command = []string{"/usr/bin/true"}
			}

			prof := seatbelt.Compile(command, pol, cwd, filter)
			fmt.Println(prof.Text)
			if len(prof.Params) > 0 {
				fmt.Println()
				for _, p := range prof.Params {
					fmt.Printf("%s=%s\n", p.Name, p.Value)
				}
			}
			return nil
		},
	}
}
