package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"lifeassistant/internal/cli"
	"lifeassistant/internal/config"
	"lifeassistant/internal/log"
	"lifeassistant/internal/ynab"
)

var budgetsCmd = &cobra.Command{
	Use:   "budgets",
	Short: "List the budget names visible to the configured YNAB token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		cfg := config.Load()
		logger := cli.SetupLogger(cfg.LogLevel)

		client := newYNABClient(cfg, logger)
		if !client.Connected() {
			return fmt.Errorf("YNAB_ACCESS_TOKEN is not set")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		names, err := client.ListBudgetNames(ctx)
		if err != nil {
			logger.Error("Could not list budgets", "error", err)
			return err
		}
		for _, name := range names {
			marker := " "
			if name == cfg.YNABDefaultBudgetName {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
		return nil
	},
}

func newYNABClient(cfg *config.Config, logger *log.Logger) *ynab.Client {
	return ynab.NewClient(ynab.Options{
		AccessToken:       cfg.YNABAccessToken,
		DefaultBudgetName: cfg.YNABDefaultBudgetName,
		BaseURL:           cfg.YNABBaseURL,
		FallbackToFirst:   cfg.YNABBudgetFallback,
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		Logger:            logger,
	})
}
