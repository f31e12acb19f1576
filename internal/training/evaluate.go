package training

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSingleClass means ROC-AUC is undefined because the evaluated labels
// contain only one class.
var ErrSingleClass = errors.New("roc auc undefined: only one class present")

// Accuracy is the fraction of predictions equal to the truth.
func Accuracy(truth, pred []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	hits := 0
	for i := range truth {
		if truth[i] == pred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(truth))
}

// ROCAUC computes the area under the ROC curve from positive-class scores
// using the rank-sum formulation. Tied scores share their average rank.
func ROCAUC(truth []int, scores []float64) (float64, error) {
	n := len(truth)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var pos, neg int
	var rankSum float64
	for i, y := range truth {
		if y == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0, ErrSingleClass
	}
	u := rankSum - float64(pos*(pos+1))/2
	return u / float64(pos*neg), nil
}

// ClassMetrics are the per-class rows of a classification report.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises binary classification quality.
type Report struct {
	Classes     []ClassMetrics `json:"classes"`
	Accuracy    float64        `json:"accuracy"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
}

// ClassificationReport builds precision, recall and F1 for class 0 (named
// negative) and class 1 (named positive). Undefined ratios are 0.
func ClassificationReport(truth, pred []int, negative, positive string) Report {
	r := Report{Accuracy: Accuracy(truth, pred)}
	total := 0
	for class, name := range []string{negative, positive} {
		var tp, fp, fn int
		for i := range truth {
			switch {
			case pred[i] == class && truth[i] == class:
				tp++
			case pred[i] == class:
				fp++
			case truth[i] == class:
				fn++
			}
		}
		m := ClassMetrics{
			Label:     name,
			Precision: ratio(tp, tp+fp),
			Recall:    ratio(tp, tp+fn),
			Support:   tp + fn,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes = append(r.Classes, m)
		total += m.Support
	}

	r.MacroAvg = ClassMetrics{Label: "macro avg", Support: total}
	r.WeightedAvg = ClassMetrics{Label: "weighted avg", Support: total}
	for _, m := range r.Classes {
		r.MacroAvg.Precision += m.Precision / 2
		r.MacroAvg.Recall += m.Recall / 2
		r.MacroAvg.F1 += m.F1 / 2
		if total > 0 {
			w := float64(m.Support) / float64(total)
			r.WeightedAvg.Precision += m.Precision * w
			r.WeightedAvg.Recall += m.Recall * w
			r.WeightedAvg.F1 += m.F1 * w
		}
	}
	return r
}

// String renders the report as a fixed-width table.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, m := range r.Classes {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", m.Label, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(&b, "\n%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	for _, m := range []ClassMetrics{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", m.Label, m.Precision, m.Recall, m.F1, m.Support)
	}
	return b.String()
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
