package applicant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
)

// missingTokens are the spellings of "no value" found in exported tabular
// data.
var missingTokens = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "nan": {}, "null": {}, "none": {}, "<na>": {}, "#n/a": {},
}

// IsMissing reports whether a raw cell spells "no value".
func IsMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func parseNumber(s string) (*float64, error) {
	if IsMissing(s) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%q is not a finite number", s)
	}
	return &v, nil
}

func parseCategory(s string) *string {
	if IsMissing(s) {
		return nil
	}
	v := strings.TrimSpace(s)
	return &v
}

// UnmarshalJSON decodes one record, coercing numeric strings to numbers and
// numbers to categories (Dependents: 0 becomes "0"). Unknown keys and values
// that cannot be coerced are reported together as a ValidationError.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: applicant record must be a JSON object", apperrors.ErrInvalidInput)
	}
	*r = Record{}
	problems := make(map[string]string)

	for key, value := range raw {
		if key == ColLoanID {
			id, err := jsonCategory(value)
			if err != nil {
				problems[key] = err.Error()
			} else if id != nil {
				r.LoanID = *id
			}
			continue
		}
		if dst := r.categorical(key); dst != nil {
			v, err := jsonCategory(value)
			if err != nil {
				problems[key] = err.Error()
				continue
			}
			*dst = v
			continue
		}
		if dst := r.numeric(key); dst != nil {
			v, err := jsonNumber(value)
			if err != nil {
				problems[key] = err.Error()
				continue
			}
			*dst = v
			continue
		}
		problems[key] = "unknown field"
	}
	if len(problems) > 0 {
		return &apperrors.ValidationError{Row: -1, Fields: problems}
	}
	return nil
}

func jsonCategory(raw json.RawMessage) (*string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return parseCategory(t), nil
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s, nil
	default:
		return nil, fmt.Errorf("expected a string, got %s", bytes.TrimSpace(raw))
	}
}

func jsonNumber(raw json.RawMessage) (*float64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &t, nil
	case string:
		return parseNumber(t)
	default:
		return nil, fmt.Errorf("expected a number, got %s", bytes.TrimSpace(raw))
	}
}

// FromFields builds a record from one row of string cells keyed by column
// name. Columns the schema does not know are ignored so training files may
// carry the label and extra columns.
func FromFields(cells map[string]string) (Record, error) {
	var r Record
	problems := make(map[string]string)
	if id, ok := cells[ColLoanID]; ok && !IsMissing(id) {
		r.LoanID = strings.TrimSpace(id)
	}
	for _, f := range fields {
		cell, ok := cells[f.name]
		if !ok {
			continue
		}
		switch f.kind {
		case categoricalField:
			*r.categorical(f.name) = parseCategory(cell)
		case numericField:
			v, err := parseNumber(cell)
			if err != nil {
				problems[f.name] = err.Error()
				continue
			}
			*r.numeric(f.name) = v
		}
	}
	if len(problems) > 0 {
		return Record{}, &apperrors.ValidationError{Row: -1, Fields: problems}
	}
	return r, nil
}

// DecodeBatch accepts either one JSON record or an array of them and reports
// whether the payload was a single object. Every record is validated; the
// first failing row rejects the whole batch.
func DecodeBatch(data []byte) ([]Record, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("%w: empty request body", apperrors.ErrInvalidInput)
	}
	if trimmed[0] != '[' {
		var record Record
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, true, rowError(err, -1)
		}
		if err := record.Validate(); err != nil {
			return nil, true, err
		}
		return []Record{record}, true, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, false, rowError(err, -1)
	}
	if len(raws) == 0 {
		return nil, false, fmt.Errorf("%w: empty batch", apperrors.ErrInvalidInput)
	}
	records := make([]Record, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &records[i]); err != nil {
			return nil, false, rowError(err, i)
		}
		if err := records[i].Validate(); err != nil {
			return nil, false, rowError(err, i)
		}
	}
	return records, false, nil
}

// rowError tags err with the failing row and makes sure it maps to a 400.
func rowError(err error, row int) error {
	var ve *apperrors.ValidationError
	if errors.As(err, &ve) {
		ve.Row = row
		return ve
	}
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		err = fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if row >= 0 {
		return fmt.Errorf("row %d: %w", row, err)
	}
	return err
}

// Validate checks value ranges: monetary amounts and the term must be
// non-negative, and Credit_History must be 0 or 1 when present.
func (r Record) Validate() error {
	problems := make(map[string]string)
	for _, name := range []string{ColApplicantIncome, ColCoapplicantIncome, ColLoanAmount, ColLoanAmountTerm} {
		if v := *r.numeric(name); v != nil && *v < 0 {
			problems[name] = "must be >= 0"
		}
	}
	if r.CreditHistory != nil && *r.CreditHistory != 0 && *r.CreditHistory != 1 {
		problems[ColCreditHistory] = "must be 0 or 1"
	}
	if len(problems) > 0 {
		return &apperrors.ValidationError{Row: -1, Fields: problems}
	}
	return nil
}
