// Package preprocess turns engineered applicant frames into the numeric
// design matrix the classifier consumes. Numeric columns pass through KNN
// imputation and standard scaling; categorical columns pass through
// most-frequent imputation and one-hot encoding. Every stage has a Fit phase
// that learns state from training data and an Apply phase that only reads it.
package preprocess

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/frame"
	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/logger"
)

// DefaultNeighbors is the KNN imputer's k.
const DefaultNeighbors = 5

// Preprocessor is the fitted column transformer. Column lists and the
// output layout are fixed at fit time and never change afterwards.
type Preprocessor struct {
	Numeric     []string        `json:"numeric"`
	Categorical []string        `json:"categorical"`
	Imputer     *KNNImputer     `json:"knn_imputer"`
	Scaler      *StandardScaler `json:"scaler"`
	Mode        *ModeImputer    `json:"mode_imputer"`
	Encoder     *OneHotEncoder  `json:"encoder"`
	Features    []string        `json:"features"`
}

// Diagnostics describes conditions met during Transform that did not stop it.
type Diagnostics struct {
	Unseen []Unseen
}

// Fit learns every stage from the engineered training frame and returns the
// fitted preprocessor together with the transformed training matrix.
func Fit(ctx context.Context, f *frame.Frame, neighbors int) (*Preprocessor, *mat.Dense, error) {
	if f.Rows() == 0 {
		return nil, nil, fmt.Errorf("%w: cannot fit preprocessing on zero rows", apperrors.ErrInvalidInput)
	}
	log := logger.FromContext(ctx).With("component", "preprocess")

	p := &Preprocessor{
		Imputer: NewKNNImputer(neighbors),
		Scaler:  &StandardScaler{},
		Mode:    &ModeImputer{},
		Encoder: &OneHotEncoder{},
	}
	for _, c := range f.Columns(frame.Numeric) {
		p.Numeric = append(p.Numeric, c.Name)
	}
	for _, c := range f.Columns(frame.Categorical) {
		p.Categorical = append(p.Categorical, c.Name)
	}
	if len(p.Numeric)+len(p.Categorical) == 0 {
		return nil, nil, fmt.Errorf("%w: no feature columns to fit", apperrors.ErrInvalidInput)
	}

	var numeric *mat.Dense
	if len(p.Numeric) > 0 {
		raw := numericMatrix(f, p.Numeric)
		if err := p.Imputer.Fit(raw); err != nil {
			return nil, nil, err
		}
		for _, j := range p.Imputer.EmptyColumns() {
			log.Warn("numeric column has no observed values, imputing 0", "column", p.Numeric[j])
		}
		imputed, err := p.Imputer.Apply(raw)
		if err != nil {
			return nil, nil, err
		}
		if err := p.Scaler.Fit(imputed); err != nil {
			return nil, nil, err
		}
		if numeric, err = p.Scaler.Apply(imputed); err != nil {
			return nil, nil, err
		}
	}

	cats := categoricalColumns(f, p.Categorical)
	if err := p.Mode.Fit(cats); err != nil {
		return nil, nil, err
	}
	for j, fill := range p.Mode.Fill {
		if fill == "" {
			log.Warn("categorical column has no observed values, encoding as zero width", "column", p.Categorical[j])
		}
	}
	filled, err := p.Mode.Apply(cats)
	if err != nil {
		return nil, nil, err
	}
	if err := p.Encoder.Fit(filled); err != nil {
		return nil, nil, err
	}

	p.Features = append(append([]string(nil), p.Numeric...), p.Encoder.FeatureNames(p.Categorical)...)
	if len(p.Features) == 0 {
		return nil, nil, fmt.Errorf("%w: every feature column is empty", apperrors.ErrInvalidInput)
	}
	x, _, err := p.assemble(numeric, filled, f.Rows())
	if err != nil {
		return nil, nil, err
	}
	log.Debug("preprocessing fitted",
		"rows", f.Rows(),
		"numeric", len(p.Numeric),
		"categorical", len(p.Categorical),
		"features", len(p.Features),
	)
	return p, x, nil
}

// Transform applies the fitted stages to an engineered frame. The frame must
// carry every fitted column with the fitted kind; extra columns are ignored.
func (p *Preprocessor) Transform(ctx context.Context, f *frame.Frame) (*mat.Dense, Diagnostics, error) {
	if f.Rows() == 0 {
		return nil, Diagnostics{}, fmt.Errorf("%w: empty batch", apperrors.ErrInvalidInput)
	}
	if err := p.checkSchema(f); err != nil {
		return nil, Diagnostics{}, err
	}

	var numeric *mat.Dense
	if len(p.Numeric) > 0 {
		imputed, err := p.Imputer.Apply(numericMatrix(f, p.Numeric))
		if err != nil {
			return nil, Diagnostics{}, err
		}
		if numeric, err = p.Scaler.Apply(imputed); err != nil {
			return nil, Diagnostics{}, err
		}
	}

	filled, err := p.Mode.Apply(categoricalColumns(f, p.Categorical))
	if err != nil {
		return nil, Diagnostics{}, err
	}
	x, unseen, err := p.assemble(numeric, filled, f.Rows())
	if err != nil {
		return nil, Diagnostics{}, err
	}

	log := logger.FromContext(ctx)
	for _, u := range unseen {
		log.Warn("unseen category encoded as all zeros",
			"component", "preprocess",
			"column", u.Column,
			"value", u.Value,
			"row", u.Row,
		)
	}
	return x, Diagnostics{Unseen: unseen}, nil
}

// Width returns the number of output features.
func (p *Preprocessor) Width() int { return len(p.Features) }

func (p *Preprocessor) checkSchema(f *frame.Frame) error {
	check := func(names []string, kind frame.Kind) error {
		for _, name := range names {
			col, ok := f.Column(name)
			if !ok {
				return fmt.Errorf("%w: column %q is missing", apperrors.ErrSchemaMismatch, name)
			}
			if col.Kind != kind {
				return fmt.Errorf("%w: column %q is %s, fitted as %s", apperrors.ErrSchemaMismatch, name, col.Kind, kind)
			}
		}
		return nil
	}
	if err := check(p.Numeric, frame.Numeric); err != nil {
		return err
	}
	return check(p.Categorical, frame.Categorical)
}

// assemble lays out the numeric block followed by the one-hot block.
func (p *Preprocessor) assemble(numeric *mat.Dense, cats [][]string, rows int) (*mat.Dense, []Unseen, error) {
	width := p.Encoder.Width()
	onehot := make([]float64, rows*width)
	unseen, err := p.Encoder.Apply(cats, p.Categorical, onehot)
	if err != nil {
		return nil, nil, err
	}

	nNum := len(p.Numeric)
	total := nNum + width
	data := make([]float64, 0, rows*total)
	for i := 0; i < rows; i++ {
		if numeric != nil {
			data = append(data, numeric.RawRowView(i)...)
		}
		data = append(data, onehot[i*width:(i+1)*width]...)
	}
	return mat.NewDense(rows, total, data), unseen, nil
}

func numericMatrix(f *frame.Frame, names []string) *mat.Dense {
	x := mat.NewDense(f.Rows(), len(names), nil)
	for j, name := range names {
		col, _ := f.Column(name)
		for i, v := range col.Num {
			if math.IsInf(v, 0) {
				v = math.NaN()
			}
			x.Set(i, j, v)
		}
	}
	return x
}

func categoricalColumns(f *frame.Frame, names []string) [][]string {
	out := make([][]string, len(names))
	for j, name := range names {
		col, _ := f.Column(name)
		out[j] = col.Cat
	}
	return out
}
