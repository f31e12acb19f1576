package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/quality"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the data-quality expectations against a training file",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := dataset.Load(cfg.Training.DataPath)
	if err != nil {
		return err
	}
	report := quality.Validate(table)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXPECTATION\tCOLUMN\tRESULT\tUNEXPECTED\tSAMPLES")
	for _, r := range report.Results {
		result := "pass"
		if !r.Success {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
			r.Expectation, r.Column, result, r.UnexpectedCount, r.ElementCount,
			strings.Join(r.UnexpectedValues, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d expectations failed for %s", len(failed), len(report.Results), cfg.Training.DataPath)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nall %d expectations passed\n", len(report.Results))
	return nil
}
