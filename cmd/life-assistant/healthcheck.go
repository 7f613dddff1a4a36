package main

import (
	"github.com/spf13/cobra"

	"lifeassistant/internal/cli"
	"lifeassistant/internal/config"
	"lifeassistant/internal/health"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check configuration and print a JSON status",
	Long:  "healthcheck reports whether every required setting is present. It does not contact any service; exit status is 0 when healthy and 1 otherwise.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		report := health.Check(config.Load())
		if err := report.Write(cmd.OutOrStdout()); err != nil {
			return err
		}
		if code := report.ExitCode(); code != 0 {
			return exitError{code: code}
		}
		return nil
	},
}
