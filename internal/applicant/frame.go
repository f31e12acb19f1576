package applicant

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/frame"
)

// ToFrame lays records out as typed columns in canonical schema order.
// Loan_ID is included only when at least one record carries one.
func ToFrame(records []Record) *frame.Frame {
	f := frame.New(len(records))

	withID := false
	for _, r := range records {
		if r.LoanID != "" {
			withID = true
			break
		}
	}
	if withID {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.LoanID
		}
		// Lengths always match, so Set cannot fail here.
		_ = f.SetCategorical(ColLoanID, ids)
	}

	for _, fd := range fields {
		switch fd.kind {
		case categoricalField:
			values := make([]string, len(records))
			for i := range records {
				if v := *records[i].categorical(fd.name); v != nil {
					values[i] = *v
				}
			}
			_ = f.SetCategorical(fd.name, values)
		case numericField:
			values := make([]float64, len(records))
			for i := range records {
				if v := *records[i].numeric(fd.name); v != nil {
					values[i] = *v
				} else {
					values[i] = math.NaN()
				}
			}
			_ = f.SetNumeric(fd.name, values)
		}
	}
	return f
}

// Fingerprint is a stable hash of every model input, ignoring Loan_ID.
// Records with equal fingerprints always receive the same prediction.
func (r Record) Fingerprint() string {
	r.LoanID = ""
	// Marshal of a struct of pointers to strings and floats cannot fail.
	data, _ := json.Marshal(r)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
