/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/commtray/commtrayd/internal/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the daemon version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("commtrayd v%s\n", versionString())
		return nil
	},
}

func versionString() string {
	return version.String()
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
