// Package quality runs the data-quality expectations a training file must
// meet before it is used.
package quality

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/dataset"
)

// maxSamples caps how many offending values a result keeps.
const maxSamples = 5

// CriticalColumns must be present in every training file.
var CriticalColumns = []string{
	applicant.ColApplicantIncome,
	applicant.ColLoanAmount,
	applicant.ColCreditHistory,
	applicant.ColGender,
	applicant.ColMarried,
}

// Result is the outcome of one expectation.
type Result struct {
	Expectation      string   `json:"expectation"`
	Column           string   `json:"column"`
	Success          bool     `json:"success"`
	ElementCount     int      `json:"element_count"`
	UnexpectedCount  int      `json:"unexpected_count"`
	UnexpectedValues []string `json:"unexpected_values,omitempty"`
	Detail           string   `json:"detail,omitempty"`
}

// Report collects every result. Success is true only if all passed.
type Report struct {
	Success bool     `json:"success"`
	Results []Result `json:"results"`
}

// Failed returns the results that did not pass.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}

// Validate runs every expectation against t.
func Validate(t *dataset.Table) Report {
	var results []Result
	for _, col := range CriticalColumns {
		results = append(results, columnExists(t, col))
	}
	results = append(results,
		valuesAtLeast(t, applicant.ColApplicantIncome, 0),
		valuesAtLeast(t, applicant.ColLoanAmount, 0),
		numbersInSet(t, applicant.ColCreditHistory, 0, 1),
		stringsInSet(t, applicant.ColGender, "Male", "Female"),
		unique(t, applicant.ColLoanID),
		notNull(t, applicant.ColLoanID),
	)

	report := Report{Success: true, Results: results}
	for _, r := range results {
		if !r.Success {
			report.Success = false
		}
	}
	return report
}

func columnExists(t *dataset.Table, col string) Result {
	r := Result{Expectation: "column_to_exist", Column: col, Success: t.Has(col)}
	if !r.Success {
		r.Detail = "column not found"
	}
	return r
}

// check applies ok to every non-missing cell of col. An absent column fails.
func check(t *dataset.Table, expectation, col string, ok func(string) bool) Result {
	r := Result{Expectation: expectation, Column: col}
	cells, found := t.Column(col)
	if !found {
		r.Detail = "column not found"
		return r
	}
	for _, cell := range cells {
		if applicant.IsMissing(cell) {
			continue
		}
		r.ElementCount++
		if !ok(strings.TrimSpace(cell)) {
			r.UnexpectedCount++
			if len(r.UnexpectedValues) < maxSamples {
				r.UnexpectedValues = append(r.UnexpectedValues, cell)
			}
		}
	}
	r.Success = r.UnexpectedCount == 0
	return r
}

func valuesAtLeast(t *dataset.Table, col string, min float64) Result {
	r := check(t, "column_values_to_be_between", col, func(s string) bool {
		v, err := strconv.ParseFloat(s, 64)
		return err == nil && v >= min
	})
	if r.Detail == "" {
		r.Detail = fmt.Sprintf("min_value=%g", min)
	}
	return r
}

func numbersInSet(t *dataset.Table, col string, set ...float64) Result {
	return check(t, "column_values_to_be_in_set", col, func(s string) bool {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return false
		}
		for _, allowed := range set {
			if v == allowed {
				return true
			}
		}
		return false
	})
}

func stringsInSet(t *dataset.Table, col string, set ...string) Result {
	return check(t, "column_values_to_be_in_set", col, func(s string) bool {
		for _, allowed := range set {
			if s == allowed {
				return true
			}
		}
		return false
	})
}

func unique(t *dataset.Table, col string) Result {
	seen := make(map[string]int)
	r := check(t, "column_values_to_be_unique", col, func(s string) bool {
		seen[s]++
		return true
	})
	if !r.Success {
		return r
	}
	for _, v := range slices.Sorted(maps.Keys(seen)) {
		if n := seen[v]; n > 1 {
			r.UnexpectedCount += n
			if len(r.UnexpectedValues) < maxSamples {
				r.UnexpectedValues = append(r.UnexpectedValues, v)
			}
		}
	}
	r.Success = r.UnexpectedCount == 0
	return r
}

func notNull(t *dataset.Table, col string) Result {
	r := Result{Expectation: "column_values_to_not_be_null", Column: col}
	cells, found := t.Column(col)
	if !found {
		r.Detail = "column not found"
		return r
	}
	r.ElementCount = len(cells)
	for _, cell := range cells {
		if applicant.IsMissing(cell) {
			r.UnexpectedCount++
		}
	}
	r.Success = r.UnexpectedCount == 0
	return r
}
