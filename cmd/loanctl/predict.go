package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/predictor"
)

// fieldFlags maps predict flags to record columns.
var fieldFlags = []struct {
	flag, column, usage string
}{
	{"gender", applicant.ColGender, "Male or Female"},
	{"married", applicant.ColMarried, "Yes or No"},
	{"dependents", applicant.ColDependents, "0, 1, 2 or 3+"},
	{"education", applicant.ColEducation, "Graduate or Not Graduate"},
	{"self-employed", applicant.ColSelfEmployed, "Yes or No"},
	{"applicant-income", applicant.ColApplicantIncome, "monthly applicant income"},
	{"coapplicant-income", applicant.ColCoapplicantIncome, "monthly co-applicant income"},
	{"loan-amount", applicant.ColLoanAmount, "loan amount in thousands"},
	{"loan-term", applicant.ColLoanAmountTerm, "loan term in months"},
	{"credit-history", applicant.ColCreditHistory, "1 if the credit history meets guidelines, else 0"},
	{"property-area", applicant.ColPropertyArea, "Urban, Semiurban or Rural"},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score applicants from a JSON file or from field flags",
	Long: `Score applicants with the fitted pipeline.

--input reads one JSON record or an array of records ("-" reads stdin).
Without --input the record is built from the field flags; fields left unset
are treated as missing.`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringP("input", "i", "", "JSON file with one record or an array of records")
	for _, f := range fieldFlags {
		predictCmd.Flags().String(f.flag, "", f.usage)
	}
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	records, single, err := readRecords(cmd)
	if err != nil {
		return err
	}

	svc := predictor.New(cfg.Predictor.ArtifactPath)
	results, err := svc.Predict(cmd.Context(), records)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if single {
		return enc.Encode(results[0])
	}
	return enc.Encode(map[string]any{"results": results})
}

func readRecords(cmd *cobra.Command) ([]applicant.Record, bool, error) {
	input, _ := cmd.Flags().GetString("input")
	if input != "" {
		var (
			data []byte
			err  error
		)
		if input == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(input)
		}
		if err != nil {
			return nil, false, fmt.Errorf("reading %s: %w", input, err)
		}
		return applicant.DecodeBatch(data)
	}

	cells := make(map[string]string)
	for _, f := range fieldFlags {
		if cmd.Flags().Changed(f.flag) {
			v, _ := cmd.Flags().GetString(f.flag)
			cells[f.column] = v
		}
	}
	if len(cells) == 0 {
		return nil, false, errors.New("either --input or at least one field flag is required")
	}
	r, err := applicant.FromFields(cells)
	if err != nil {
		return nil, false, err
	}
	if err := r.Validate(); err != nil {
		return nil, false, err
	}
	return []applicant.Record{r}, true, nil
}
