package preprocess

import (
	"fmt"
	"slices"
)

// ModeImputer replaces a missing category with the most frequent value seen
// at fit. Ties go to the lexicographically smallest value.
type ModeImputer struct {
	Fill []string `json:"fill"`
}

// Fit learns one fill value per column. A column with no observed value
// keeps "" as its fill.
func (m *ModeImputer) Fit(cols [][]string) error {
	m.Fill = make([]string, len(cols))
	for j, values := range cols {
		counts := make(map[string]int)
		for _, v := range values {
			if v != "" {
				counts[v]++
			}
		}
		best, bestCount := "", 0
		for v, n := range counts {
			if n > bestCount || (n == bestCount && v < best) {
				best, bestCount = v, n
			}
		}
		m.Fill[j] = best
	}
	return nil
}

// Apply returns imputed copies of cols.
func (m *ModeImputer) Apply(cols [][]string) ([][]string, error) {
	if len(cols) != len(m.Fill) {
		return nil, fmt.Errorf("mode imputer: fitted on %d columns, got %d", len(m.Fill), len(cols))
	}
	out := make([][]string, len(cols))
	for j, values := range cols {
		out[j] = make([]string, len(values))
		for i, v := range values {
			if v == "" {
				v = m.Fill[j]
			}
			out[j][i] = v
		}
	}
	return out, nil
}

// OneHotEncoder expands each categorical column into one indicator per value
// seen at fit. Vocabularies are sorted so the layout is deterministic.
type OneHotEncoder struct {
	Vocabulary [][]string `json:"vocabulary"`
}

// Unseen records a category that had no indicator column at fit time.
type Unseen struct {
	Column string
	Value  string
	Row    int
}

// Fit collects the sorted set of non-empty values per column.
func (e *OneHotEncoder) Fit(cols [][]string) error {
	e.Vocabulary = make([][]string, len(cols))
	for j, values := range cols {
		vocab := make([]string, 0)
		for _, v := range values {
			if v != "" && !slices.Contains(vocab, v) {
				vocab = append(vocab, v)
			}
		}
		slices.Sort(vocab)
		e.Vocabulary[j] = vocab
	}
	return nil
}

// Width returns the number of indicator columns.
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, vocab := range e.Vocabulary {
		w += len(vocab)
	}
	return w
}

// Apply writes indicators into dst, a rows x Width() row-major buffer, and
// reports every value without an indicator. Such rows get all zeros in that
// column's block.
func (e *OneHotEncoder) Apply(cols [][]string, names []string, dst []float64) ([]Unseen, error) {
	if len(cols) != len(e.Vocabulary) {
		return nil, fmt.Errorf("one-hot encoder: fitted on %d columns, got %d", len(e.Vocabulary), len(cols))
	}
	width := e.Width()
	var unseen []Unseen
	offset := 0
	for j, values := range cols {
		vocab := e.Vocabulary[j]
		for i, v := range values {
			if v == "" {
				continue
			}
			k, found := slices.BinarySearch(vocab, v)
			if !found {
				unseen = append(unseen, Unseen{Column: names[j], Value: v, Row: i})
				continue
			}
			dst[i*width+offset+k] = 1
		}
		offset += len(vocab)
	}
	return unseen, nil
}

// FeatureNames returns "<column>_<value>" for each indicator in layout order.
func (e *OneHotEncoder) FeatureNames(names []string) []string {
	out := make([]string, 0, e.Width())
	for j, vocab := range e.Vocabulary {
		for _, v := range vocab {
			out = append(out, names[j]+"_"+v)
		}
	}
	return out
}
