package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/predictor"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Fill in a loan application interactively and get a decision",
	RunE:  runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc := predictor.New(cfg.Predictor.ArtifactPath)

	r, err := fillForm(applicant.FormDefaults())
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return errors.New("application cancelled")
	}
	if err != nil {
		return err
	}

	printDecision(cmd.OutOrStdout(), svc.PredictOne(cmd.Context(), r))
	return nil
}

// fillForm asks for every field, starting from defaults.
func fillForm(defaults applicant.Record) (applicant.Record, error) {
	var (
		r   applicant.Record
		err error
	)
	categorical := []struct {
		label string
		items []string
		dst   **string
		def   *string
	}{
		{"Gender", applicant.GenderOptions, &r.Gender, defaults.Gender},
		{"Married", applicant.MarriedOptions, &r.Married, defaults.Married},
		{"Dependents", applicant.DependentsOptions, &r.Dependents, defaults.Dependents},
		{"Education", applicant.EducationOptions, &r.Education, defaults.Education},
		{"Self Employed", applicant.SelfEmployedOptions, &r.SelfEmployed, defaults.SelfEmployed},
	}
	for _, c := range categorical {
		v, err := selectOption(c.label, c.items, *c.def)
		if err != nil {
			return r, err
		}
		*c.dst = applicant.Ptr(v)
	}

	if r.ApplicantIncome, err = promptAmount("Applicant Income", *defaults.ApplicantIncome); err != nil {
		return r, err
	}
	if r.CoapplicantIncome, err = promptAmount("Coapplicant Income", *defaults.CoapplicantIncome); err != nil {
		return r, err
	}
	if r.LoanAmount, err = promptAmount("Loan Amount (thousands)", *defaults.LoanAmount); err != nil {
		return r, err
	}
	if r.LoanAmountTerm, err = selectNumber("Loan Amount Term (months)", applicant.LoanTermOptions, *defaults.LoanAmountTerm); err != nil {
		return r, err
	}
	if r.CreditHistory, err = selectNumber("Credit History (1 = meets guidelines)", applicant.CreditHistoryOptions, *defaults.CreditHistory); err != nil {
		return r, err
	}
	area, err := selectOption("Property Area", applicant.PropertyAreaOptions, *defaults.PropertyArea)
	if err != nil {
		return r, err
	}
	r.PropertyArea = applicant.Ptr(area)
	return r, nil
}

func selectOption(label string, items []string, def string) (string, error) {
	prompt := promptui.Select{
		Label:     label,
		Items:     items,
		CursorPos: max(slices.Index(items, def), 0),
	}
	_, v, err := prompt.Run()
	return v, err
}

func selectNumber(label string, items []float64, def float64) (*float64, error) {
	labels := make([]string, len(items))
	for i, v := range items {
		labels[i] = formatNumber(v)
	}
	v, err := selectOption(label, labels, formatNumber(def))
	if err != nil {
		return nil, err
	}
	return parseAmount(v)
}

func promptAmount(label string, def float64) (*float64, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: formatNumber(def),
		Validate: func(s string) error {
			_, err := parseAmount(s)
			return err
		},
	}
	v, err := prompt.Run()
	if err != nil {
		return nil, err
	}
	return parseAmount(v)
}

// parseAmount accepts a finite non-negative number.
func parseAmount(s string) (*float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	if v < 0 {
		return nil, errors.New("must be zero or more")
	}
	return &v, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func printDecision(w io.Writer, res predictor.Result) {
	if res.Error != "" {
		fmt.Fprintln(w, res.Error)
		return
	}
	fmt.Fprintf(w, "\nLoan Status: %s\n", res.Status)
	fmt.Fprintf(w, "Approval Probability: %.2f%%\n", res.Probability*100)
	if res.Explanation != "" {
		fmt.Fprintln(w, res.Explanation)
	}
}
