package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
)

// Applicants converts every row into an applicant record and a 0/1 label,
// mapping positive to 1 and negative to 0. Any other label value, and any
// cell that cannot be coerced, aborts with the failing row index.
func Applicants(t *Table, target, positive, negative string) ([]applicant.Record, []int, error) {
	if !t.Has(target) {
		return nil, nil, fmt.Errorf("%w: target column %q not found", apperrors.ErrInvalidInput, target)
	}
	if len(t.Rows) == 0 {
		return nil, nil, fmt.Errorf("%w: data file has no rows", apperrors.ErrInvalidInput)
	}
	records := make([]applicant.Record, len(t.Rows))
	labels := make([]int, len(t.Rows))
	for i := range t.Rows {
		cells := t.Fields(i)
		switch label := strings.TrimSpace(cells[target]); label {
		case positive:
			labels[i] = 1
		case negative:
			labels[i] = 0
		default:
			return nil, nil, fmt.Errorf("%w: row %d: %s is %q, want %q or %q",
				apperrors.ErrInvalidInput, i, target, label, positive, negative)
		}
		r, err := applicant.FromFields(cells)
		if err != nil {
			var ve *apperrors.ValidationError
			if errors.As(err, &ve) {
				ve.Row = i
				return nil, nil, ve
			}
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}
		records[i] = r
	}
	return records, labels, nil
}
