package predictor

import "github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"

// Rejection reasons shown next to a rejected result.
const (
	ReasonPoorCredit = "Reason: Poor Credit History is a major factor."
	ReasonLowIncome  = "Reason: Total Income might be too low."
)

// lowIncomeThreshold is the combined income below which low income is named.
const lowIncomeThreshold = 3000

// Explain returns a short reason for a rejection, or "" when the applicant
// was approved or no rule applies. A credit history of 0 takes precedence
// over low income. A missing credit history is not treated as poor.
func Explain(r applicant.Record, status string) string {
	if status != StatusRejected {
		return ""
	}
	if r.CreditHistory != nil && *r.CreditHistory == 0 {
		return ReasonPoorCredit
	}
	if r.TotalIncome() < lowIncomeThreshold {
		return ReasonLowIncome
	}
	return ""
}
