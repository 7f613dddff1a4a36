package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lifeassistant/internal/assistant"
	"lifeassistant/internal/cli"
	"lifeassistant/internal/config"
)

var flagSummaryTokens int

var summarizeCmd = &cobra.Command{
	Use:   "summarize [text...]",
	Short: "Summarize text in one sentence with the configured model",
	Long:  "summarize joins its arguments, or reads standard input when none are given, and prints a one-sentence summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		cfg := config.Load()
		logger := cli.SetupLogger(cfg.LogLevel)

		text := strings.Join(args, " ")
		if text == "" {
			raw, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			text = string(raw)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return fmt.Errorf("nothing to summarize")
		}

		provider, err := assistant.NewProvider(cmd.Context(), assistant.ProviderConfig{
			Name:   cfg.LLMProvider,
			APIKey: cfg.LLMAPIKey(),
			Model:  cfg.LLMModel,
		})
		if err != nil {
			return err
		}
		a := assistant.New(provider,
			assistant.WithSummaryMaxTokens(cfg.LLMSummaryMaxTokens),
			assistant.WithLogger(logger),
		)

		fmt.Fprintln(cmd.OutOrStdout(), a.Summarize(cmd.Context(), text, flagSummaryTokens))
		return nil
	},
}

func init() {
	summarizeCmd.Flags().IntVar(&flagSummaryTokens, "max-tokens", 0, "token budget for the summary (0 uses LLM_SUMMARY_MAX_TOKENS)")
	rootCmd.AddCommand(summarizeCmd)
}
