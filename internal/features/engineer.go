// Package features derives model features from applicant frames.
package features

import (
	"context"
	"math"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/frame"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/logger"
)

// Derived column names.
const (
	ColTotalIncome    = "Total_Income"
	ColLoanAmountLog  = "LoanAmount_Log"
	ColTotalIncomeLog = "Total_Income_Log"
)

// Credit history codes after recoding.
const (
	CreditGood = "Y"
	CreditPoor = "N"
)

// Dropped lists the raw columns that never reach the preprocessing stages.
var Dropped = []string{
	applicant.ColApplicantIncome,
	applicant.ColCoapplicantIncome,
	applicant.ColLoanAmount,
	ColTotalIncome,
	applicant.ColLoanID,
}

// Engineer returns a new frame with income totals, log-smoothed amounts and a
// categorical credit history, and without the raw monetary columns. Each
// derivation runs only when its inputs are present; skipped derivations are
// logged at debug level. The input frame is not modified.
func Engineer(ctx context.Context, in *frame.Frame) *frame.Frame {
	log := logger.FromContext(ctx).With("component", "feature-engineer")
	out := in.Clone()

	if out.Has(applicant.ColApplicantIncome, applicant.ColCoapplicantIncome) {
		a, _ := out.Column(applicant.ColApplicantIncome)
		b, _ := out.Column(applicant.ColCoapplicantIncome)
		total := make([]float64, out.Rows())
		for i := range total {
			total[i] = a.Num[i] + b.Num[i]
		}
		_ = out.SetNumeric(ColTotalIncome, total)
	} else {
		log.Debug("derivation skipped", "derivation", ColTotalIncome,
			"requires", []string{applicant.ColApplicantIncome, applicant.ColCoapplicantIncome})
	}

	if col, ok := out.Column(applicant.ColCreditHistory); !ok {
		log.Debug("derivation skipped", "derivation", applicant.ColCreditHistory,
			"requires", []string{applicant.ColCreditHistory})
	} else if col.Kind != frame.Numeric {
		log.Warn("credit history is already categorical, leaving it unchanged")
	} else {
		codes, unmapped := recodeCreditHistory(col.Num)
		if unmapped > 0 {
			log.Debug("credit history values outside {0, 1} treated as missing", "count", unmapped)
		}
		_ = out.SetCategorical(applicant.ColCreditHistory, codes)
	}

	if col, ok := out.Column(applicant.ColLoanAmount); ok {
		_ = out.SetNumeric(ColLoanAmountLog, log1p(col.Num))
	} else {
		log.Debug("derivation skipped", "derivation", ColLoanAmountLog,
			"requires", []string{applicant.ColLoanAmount})
	}

	if col, ok := out.Column(ColTotalIncome); ok {
		_ = out.SetNumeric(ColTotalIncomeLog, log1p(col.Num))
	} else {
		log.Debug("derivation skipped", "derivation", ColTotalIncomeLog,
			"requires", []string{ColTotalIncome})
	}

	out.Drop(Dropped...)
	return out
}

// recodeCreditHistory maps 1 to "Y" and 0 to "N". Missing and any other
// value become missing.
func recodeCreditHistory(values []float64) ([]string, int) {
	codes := make([]string, len(values))
	unmapped := 0
	for i, v := range values {
		switch {
		case v == 1:
			codes[i] = CreditGood
		case v == 0:
			codes[i] = CreditPoor
		case !math.IsNaN(v):
			unmapped++
		}
	}
	return codes, unmapped
}

func log1p(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Log1p(v)
	}
	return out
}
