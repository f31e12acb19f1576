package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
)

const sampleCSV = "\xEF\xBB\xBFLoan_ID,Gender,ApplicantIncome,Credit_History,Loan_Status\n" +
	"LP001,Male,5849,1,Y\n" +
	"\n" +
	"LP002, Female,,0,N\n" +
	"LP003,Male,3000,NA,Y\n"

func TestParseCSV(t *testing.T) {
	table, err := Parse("train.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Header[0] != "Loan_ID" {
		t.Errorf("BOM not stripped: %q", table.Header[0])
	}
	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3 (blank line skipped)", len(table.Rows))
	}
	genders, _ := table.Column("Gender")
	if genders[1] != "Female" {
		t.Errorf("leading space kept: %q", genders[1])
	}
}

func TestApplicants(t *testing.T) {
	table, err := Parse("train.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	records, labels, err := Applicants(table, "Loan_Status", "Y", "N")
	if err != nil {
		t.Fatalf("Applicants: %v", err)
	}
	if !slices.Equal(labels, []int{1, 0, 1}) {
		t.Errorf("labels = %v", labels)
	}
	if records[1].ApplicantIncome != nil {
		t.Errorf("empty income should be missing")
	}
	if records[2].CreditHistory != nil {
		t.Errorf("NA credit history should be missing")
	}
	if records[0].LoanID != "LP001" {
		t.Errorf("loan id = %q", records[0].LoanID)
	}
}

func TestApplicantsErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"unknown label", "Gender,Loan_Status\nMale,Y\nFemale,maybe\n"},
		{"missing target", "Gender\nMale\n"},
		{"bad number", "ApplicantIncome,Loan_Status\nlots,Y\n"},
		{"no rows", "Gender,Loan_Status\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse("x.csv", []byte(tt.csv))
			if err != nil {
				t.Fatal(err)
			}
			_, _, err = Applicants(table, "Loan_Status", "Y", "N")
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("err = %v, want invalid input", err)
			}
		})
	}
}

func TestParseExcel(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]any{
		{"Gender", "LoanAmount", "Loan_Status"},
		{"Male", 120, "Y"},
		{"Female", 66, "N"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	table, err := Parse("train.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	records, labels, err := Applicants(table, "Loan_Status", "Y", "N")
	if err != nil {
		t.Fatal(err)
	}
	if *records[0].LoanAmount != 120 || labels[1] != 0 {
		t.Errorf("records = %+v labels = %v", records, labels)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, apperrors.ErrDataFileNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !table.Has("Loan_Status") {
		t.Error("label column missing")
	}
}

func TestSplit(t *testing.T) {
	train, test := Split(10, 0.2, 42)
	if len(test) != 2 || len(train) != 8 {
		t.Fatalf("sizes = %d/%d", len(train), len(test))
	}
	all := append(slices.Clone(train), test...)
	slices.Sort(all)
	for i, v := range all {
		if v != i {
			t.Fatalf("split is not a partition: %v", all)
		}
	}

	train2, test2 := Split(10, 0.2, 42)
	if !slices.Equal(train, train2) || !slices.Equal(test, test2) {
		t.Error("same seed gave a different split")
	}

	_, odd := Split(11, 0.2, 42)
	if len(odd) != 3 {
		t.Errorf("ceil(0.2*11) = %d, want 3", len(odd))
	}
}
