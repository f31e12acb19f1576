package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/predictor"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"5000", 5000, false},
		{"0", 0, false},
		{"12.5", 12.5, false},
		{"-1", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
		{"+Inf", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && *got != tt.want {
				t.Errorf("got %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestPrintDecision(t *testing.T) {
	tests := []struct {
		name string
		res  predictor.Result
		want []string
	}{
		{
			name: "approved",
			res:  predictor.Result{Status: predictor.StatusApproved, Probability: 0.8734},
			want: []string{"Loan Status: Approved", "Approval Probability: 87.34%"},
		},
		{
			name: "rejected with reason",
			res:  predictor.Result{Status: predictor.StatusRejected, Probability: 0.12, Explanation: predictor.ReasonPoorCredit},
			want: []string{"Loan Status: Rejected", "12.00%", predictor.ReasonPoorCredit},
		},
		{
			name: "model missing",
			res:  predictor.Result{Error: predictor.MsgModelNotFound},
			want: []string{predictor.MsgModelNotFound},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printDecision(&buf, tt.res)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}
}

func newPredictFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().StringP("input", "i", "", "")
	for _, f := range fieldFlags {
		cmd.Flags().String(f.flag, "", "")
	}
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatal(err)
	}
	return cmd
}

func TestReadRecordsFromFlags(t *testing.T) {
	cmd := newPredictFlags(t, "--gender", "Female", "--applicant-income", "4200", "--credit-history", "1")
	records, single, err := readRecords(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !single || len(records) != 1 {
		t.Fatalf("single=%v records=%d", single, len(records))
	}
	r := records[0]
	if *r.Gender != "Female" || *r.ApplicantIncome != 4200 || *r.CreditHistory != 1 {
		t.Errorf("record = %+v", r)
	}
	if r.Married != nil || r.LoanAmount != nil {
		t.Error("unset flags should be missing")
	}
}

func TestReadRecordsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"bad number", []string{"--loan-amount", "lots"}},
		{"negative income", []string{"--applicant-income", "-10"}},
		{"missing file", []string{"--input", "/nonexistent/record.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := readRecords(newPredictFlags(t, tt.args...)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReadRecordsFromStdin(t *testing.T) {
	cmd := newPredictFlags(t, "--input", "-")
	cmd.SetIn(strings.NewReader(`[{"Gender":"Male"},{"Gender":"Female","Credit_History":0}]`))
	records, single, err := readRecords(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if single || len(records) != 2 {
		t.Fatalf("single=%v records=%d", single, len(records))
	}
	if *records[1].CreditHistory != 0 {
		t.Errorf("credit = %v", *records[1].CreditHistory)
	}
}

func TestFormDefaultsMatchOptions(t *testing.T) {
	d := applicant.FormDefaults()
	if *d.ApplicantIncome != 5000 || *d.CoapplicantIncome != 0 || *d.LoanAmount != 100 {
		t.Errorf("numeric defaults = %v %v %v", *d.ApplicantIncome, *d.CoapplicantIncome, *d.LoanAmount)
	}
	if formatNumber(*d.LoanAmountTerm) != "360" || formatNumber(*d.CreditHistory) != "1" {
		t.Errorf("select defaults = %s %s", formatNumber(*d.LoanAmountTerm), formatNumber(*d.CreditHistory))
	}
}
