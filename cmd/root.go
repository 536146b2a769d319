/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "commtrayd",
	Short: "Notification daemon for messaging and telephony events",
	Long: `commtrayd aggregates communication events (SMS, MMS, IM, missed
calls and voicemails) into per-conversation notification groups and keeps
them in sync with contact resolution, conversation observation and
voicemail indicators.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = versionString()
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/commtrayd/config.toml)")
}
