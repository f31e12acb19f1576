package applicant

// Option sets offered by the interactive form. Values outside these sets are
// still accepted by the model and encode as unseen categories.
var (
	GenderOptions        = []string{"Male", "Female"}
	MarriedOptions       = []string{"Yes", "No"}
	DependentsOptions    = []string{"0", "1", "2", "3+"}
	EducationOptions     = []string{"Graduate", "Not Graduate"}
	SelfEmployedOptions  = []string{"No", "Yes"}
	LoanTermOptions      = []float64{360, 180, 120, 84, 60}
	CreditHistoryOptions = []float64{1.0, 0.0}
	PropertyAreaOptions  = []string{"Urban", "Semiurban", "Rural"}
)

// Form defaults for the numeric inputs.
const (
	DefaultApplicantIncome   = 5000
	DefaultCoapplicantIncome = 0
	DefaultLoanAmount        = 100
)

// Options is the JSON shape of the form configuration.
type Options struct {
	Gender         []string           `json:"Gender"`
	Married        []string           `json:"Married"`
	Dependents     []string           `json:"Dependents"`
	Education      []string           `json:"Education"`
	SelfEmployed   []string           `json:"Self_Employed"`
	LoanAmountTerm []float64          `json:"Loan_Amount_Term"`
	CreditHistory  []float64          `json:"Credit_History"`
	PropertyArea   []string           `json:"Property_Area"`
	Defaults       map[string]float64 `json:"defaults"`
}

// FormOptions returns the option sets and numeric defaults.
func FormOptions() Options {
	return Options{
		Gender:         GenderOptions,
		Married:        MarriedOptions,
		Dependents:     DependentsOptions,
		Education:      EducationOptions,
		SelfEmployed:   SelfEmployedOptions,
		LoanAmountTerm: LoanTermOptions,
		CreditHistory:  CreditHistoryOptions,
		PropertyArea:   PropertyAreaOptions,
		Defaults: map[string]float64{
			ColApplicantIncome:   DefaultApplicantIncome,
			ColCoapplicantIncome: DefaultCoapplicantIncome,
			ColLoanAmount:        DefaultLoanAmount,
			ColLoanAmountTerm:    LoanTermOptions[0],
			ColCreditHistory:     CreditHistoryOptions[0],
		},
	}
}

// FormDefaults is the record the form starts from.
func FormDefaults() Record {
	return Record{
		Gender:            Ptr(GenderOptions[0]),
		Married:           Ptr(MarriedOptions[0]),
		Dependents:        Ptr(DependentsOptions[0]),
		Education:         Ptr(EducationOptions[0]),
		SelfEmployed:      Ptr(SelfEmployedOptions[0]),
		ApplicantIncome:   Ptr(float64(DefaultApplicantIncome)),
		CoapplicantIncome: Ptr(float64(DefaultCoapplicantIncome)),
		LoanAmount:        Ptr(float64(DefaultLoanAmount)),
		LoanAmountTerm:    Ptr(LoanTermOptions[0]),
		CreditHistory:     Ptr(CreditHistoryOptions[0]),
		PropertyArea:      Ptr(PropertyAreaOptions[0]),
	}
}
