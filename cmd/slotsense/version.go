package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hrygo/slotsense/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version, optionally checking it against a minimum",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "slotsense", version.String())
		minimum, err := cmd.Flags().GetString("check")
		if err != nil || minimum == "" {
			return err
		}
		return version.CheckMinimum(minimum)
	},
}

func init() {
	versionCmd.Flags().String("check", "", "fail unless the version is at least this one")
}
