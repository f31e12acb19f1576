package applicant

import (
	"errors"
	"math"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
)

const scenarioA = `{
	"Gender": "Male", "Married": "Yes", "Dependents": "0", "Education": "Graduate",
	"Self_Employed": "No", "ApplicantIncome": 5000, "CoapplicantIncome": 0,
	"LoanAmount": 150, "Loan_Amount_Term": 360, "Credit_History": 1.0, "Property_Area": "Urban"
}`

func TestDecodeSingleRecord(t *testing.T) {
	records, single, err := DecodeBatch([]byte(scenarioA))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if !single || len(records) != 1 {
		t.Fatalf("single = %v, len = %d", single, len(records))
	}
	r := records[0]
	if *r.Gender != "Male" || *r.Dependents != "0" || *r.LoanAmount != 150 || *r.CreditHistory != 1 {
		t.Errorf("decoded = %+v", r)
	}
}

func TestDecodeCoercion(t *testing.T) {
	records, _, err := DecodeBatch([]byte(`[
		{"Dependents": 2, "ApplicantIncome": "4500.5", "Credit_History": "0", "Gender": null},
		{"Dependents": "3+", "LoanAmount": "", "Married": "  Yes "}
	]`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	first, second := records[0], records[1]
	if *first.Dependents != "2" {
		t.Errorf("numeric dependents not coerced: %q", *first.Dependents)
	}
	if *first.ApplicantIncome != 4500.5 {
		t.Errorf("string income not coerced: %v", *first.ApplicantIncome)
	}
	if first.Gender != nil {
		t.Error("null should decode as missing")
	}
	if second.LoanAmount != nil {
		t.Error("empty string should decode as missing")
	}
	if *second.Married != "Yes" {
		t.Errorf("category not trimmed: %q", *second.Married)
	}
}

func TestDecodeRejectsMalformedRow(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantRow int
		field   string
	}{
		{"not a number", `[{"Gender":"Male"},{"LoanAmount":"lots"}]`, 1, ColLoanAmount},
		{"bool category", `{"Gender": true}`, -1, ColGender},
		{"unknown field", `{"Salary": 10}`, -1, "Salary"},
		{"negative income", `[{"ApplicantIncome": -1}]`, 0, ColApplicantIncome},
		{"credit history out of set", `{"Credit_History": 0.5}`, -1, ColCreditHistory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeBatch([]byte(tt.body))
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			var ve *apperrors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %T, want ValidationError", err)
			}
			if ve.Row != tt.wantRow {
				t.Errorf("row = %d, want %d", ve.Row, tt.wantRow)
			}
			if _, ok := ve.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want %s", ve.Fields, tt.field)
			}
		})
	}
}

func TestDecodeRejectsEmpty(t *testing.T) {
	for _, body := range []string{"", "[]", "42"} {
		if _, _, err := DecodeBatch([]byte(body)); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("body %q: err = %v", body, err)
		}
	}
}

func TestFromFieldsMissingTokens(t *testing.T) {
	r, err := FromFields(map[string]string{
		ColLoanID:          "LP001002",
		ColGender:          "NA",
		ColCreditHistory:   "",
		ColLoanAmount:      "NaN",
		ColApplicantIncome: "5849",
		ColDependents:      "3+",
		"Loan_Status":      "Y",
	})
	if err != nil {
		t.Fatalf("FromFields: %v", err)
	}
	if r.LoanID != "LP001002" || r.Gender != nil || r.CreditHistory != nil || r.LoanAmount != nil {
		t.Errorf("record = %+v", r)
	}
	if *r.ApplicantIncome != 5849 || *r.Dependents != "3+" {
		t.Errorf("record = %+v", r)
	}

	if _, err := FromFields(map[string]string{ColLoanAmount: "12k"}); err == nil {
		t.Error("expected coercion error")
	}
}

func TestToFrameOrderAndMissing(t *testing.T) {
	records := []Record{
		{Gender: Ptr("Male"), ApplicantIncome: Ptr(5000.0)},
		{LoanID: "LP1", CreditHistory: Ptr(0.0)},
	}
	f := ToFrame(records)
	names := f.Names()
	if names[0] != ColLoanID || names[1] != ColGender || names[len(names)-1] != ColPropertyArea {
		t.Errorf("names = %v", names)
	}
	income, _ := f.Column(ColApplicantIncome)
	if income.Num[0] != 5000 || !math.IsNaN(income.Num[1]) {
		t.Errorf("income = %v", income.Num)
	}
	gender, _ := f.Column(ColGender)
	if gender.Cat[1] != "" {
		t.Errorf("missing gender = %q", gender.Cat[1])
	}

	noID := ToFrame(records[:1])
	if noID.Has(ColLoanID) {
		t.Error("Loan_ID column should be omitted when no record has one")
	}
}

func TestFingerprintIgnoresLoanID(t *testing.T) {
	a := FormDefaults()
	b := FormDefaults()
	b.LoanID = "LP42"
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("Loan_ID changed the fingerprint")
	}
	b.CreditHistory = Ptr(0.0)
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("model input change did not change the fingerprint")
	}
}

func TestTotalIncome(t *testing.T) {
	r := Record{ApplicantIncome: Ptr(1000.0)}
	if got := r.TotalIncome(); got != 1000 {
		t.Errorf("TotalIncome = %v", got)
	}
	r.CoapplicantIncome = Ptr(500.0)
	if got := r.TotalIncome(); got != 1500 {
		t.Errorf("TotalIncome = %v", got)
	}
}
