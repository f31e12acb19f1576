// Package applicant defines the typed Applicant Record accepted at every
// boundary (HTTP, CLI, training files), its coercion and validation rules, and
// the option sets offered by the interactive form.
package applicant

// Column names shared by training files, JSON payloads and the feature frame.
const (
	ColLoanID            = "Loan_ID"
	ColGender            = "Gender"
	ColMarried           = "Married"
	ColDependents        = "Dependents"
	ColEducation         = "Education"
	ColSelfEmployed      = "Self_Employed"
	ColApplicantIncome   = "ApplicantIncome"
	ColCoapplicantIncome = "CoapplicantIncome"
	ColLoanAmount        = "LoanAmount"
	ColLoanAmountTerm    = "Loan_Amount_Term"
	ColCreditHistory     = "Credit_History"
	ColPropertyArea      = "Property_Area"
)

type fieldKind int

const (
	categoricalField fieldKind = iota
	numericField
)

type field struct {
	name string
	kind fieldKind
}

// fields lists the record schema in canonical frame order. Loan_ID is handled
// separately because it never reaches the model.
var fields = []field{
	{ColGender, categoricalField},
	{ColMarried, categoricalField},
	{ColDependents, categoricalField},
	{ColEducation, categoricalField},
	{ColSelfEmployed, categoricalField},
	{ColApplicantIncome, numericField},
	{ColCoapplicantIncome, numericField},
	{ColLoanAmount, numericField},
	{ColLoanAmountTerm, numericField},
	{ColCreditHistory, numericField},
	{ColPropertyArea, categoricalField},
}

// Record is one applicant. A nil pointer means the value is missing.
type Record struct {
	LoanID            string   `json:"Loan_ID,omitempty"`
	Gender            *string  `json:"Gender"`
	Married           *string  `json:"Married"`
	Dependents        *string  `json:"Dependents"`
	Education         *string  `json:"Education"`
	SelfEmployed      *string  `json:"Self_Employed"`
	ApplicantIncome   *float64 `json:"ApplicantIncome"`
	CoapplicantIncome *float64 `json:"CoapplicantIncome"`
	LoanAmount        *float64 `json:"LoanAmount"`
	LoanAmountTerm    *float64 `json:"Loan_Amount_Term"`
	CreditHistory     *float64 `json:"Credit_History"`
	PropertyArea      *string  `json:"Property_Area"`
}

// Ptr returns a pointer to v, for building records in code.
func Ptr[T any](v T) *T { return &v }

func (r *Record) categorical(name string) **string {
	switch name {
	case ColGender:
		return &r.Gender
	case ColMarried:
		return &r.Married
	case ColDependents:
		return &r.Dependents
	case ColEducation:
		return &r.Education
	case ColSelfEmployed:
		return &r.SelfEmployed
	case ColPropertyArea:
		return &r.PropertyArea
	}
	return nil
}

func (r *Record) numeric(name string) **float64 {
	switch name {
	case ColApplicantIncome:
		return &r.ApplicantIncome
	case ColCoapplicantIncome:
		return &r.CoapplicantIncome
	case ColLoanAmount:
		return &r.LoanAmount
	case ColLoanAmountTerm:
		return &r.LoanAmountTerm
	case ColCreditHistory:
		return &r.CreditHistory
	}
	return nil
}

// TotalIncome sums both incomes, counting a missing income as zero.
func (r Record) TotalIncome() float64 {
	var total float64
	if r.ApplicantIncome != nil {
		total += *r.ApplicantIncome
	}
	if r.CoapplicantIncome != nil {
		total += *r.CoapplicantIncome
	}
	return total
}
