package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/assistant"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the loan policy document",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		answer := assistant.New(cfg.Predictor.PolicyPath, nil).Answer(strings.Join(args, " "))
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
