// Package model holds the binary classifier, the composed fitted pipeline,
// and the on-disk artifact that carries both between training and serving.
package model

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/logger"
)

const (
	DefaultC       = 1.0
	DefaultMaxIter = 1000
	gradTolerance  = 1e-4
)

// LogisticRegression is an L2-regularised binary logistic model. C is the
// inverse regularisation strength; the intercept is not penalised.
type LogisticRegression struct {
	C          float64   `json:"c"`
	MaxIter    int       `json:"max_iter"`
	Coef       []float64 `json:"coef"`
	Intercept  float64   `json:"intercept"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
}

// NewLogisticRegression returns an unfitted classifier.
func NewLogisticRegression(c float64, maxIter int) *LogisticRegression {
	return &LogisticRegression{C: c, MaxIter: maxIter}
}

// Fit minimises the penalised log loss with L-BFGS. y holds 0/1 labels and
// must contain both classes. Hitting the iteration cap is logged, not fatal.
func (lr *LogisticRegression) Fit(ctx context.Context, x *mat.Dense, y []float64) error {
	n, d := x.Dims()
	if n != len(y) {
		return fmt.Errorf("logistic regression: %d rows but %d labels", n, len(y))
	}
	if lr.C <= 0 || lr.MaxIter < 1 {
		return fmt.Errorf("logistic regression: invalid C=%v max_iter=%d", lr.C, lr.MaxIter)
	}
	pos := floats.Sum(y)
	if pos == 0 || pos == float64(n) {
		return fmt.Errorf("logistic regression: training labels contain a single class")
	}

	labels := mat.NewVecDense(n, y)
	z := mat.NewVecDense(n, nil)
	residual := mat.NewVecDense(n, nil)

	// linear fills z with Xw + b for parameters theta = [w..., b].
	linear := func(theta []float64) {
		z.MulVec(x, mat.NewVecDense(d, theta[:d]))
		b := theta[d]
		for i := 0; i < n; i++ {
			z.SetVec(i, z.AtVec(i)+b)
		}
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			linear(theta)
			var loss float64
			for i := 0; i < n; i++ {
				zi := z.AtVec(i)
				loss += softplus(zi) - labels.AtVec(i)*zi
			}
			w := theta[:d]
			return 0.5*floats.Dot(w, w) + lr.C*loss
		},
		Grad: func(grad, theta []float64) {
			linear(theta)
			for i := 0; i < n; i++ {
				residual.SetVec(i, sigmoid(z.AtVec(i))-labels.AtVec(i))
			}
			g := mat.NewVecDense(d, grad[:d])
			g.MulVec(x.T(), residual)
			floats.Scale(lr.C, grad[:d])
			floats.Add(grad[:d], theta[:d])
			grad[d] = lr.C * mat.Sum(residual)
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   lr.MaxIter,
		GradientThreshold: gradTolerance,
	}
	result, err := optimize.Minimize(problem, make([]float64, d+1), settings, &optimize.LBFGS{})
	if result == nil {
		return fmt.Errorf("logistic regression: optimisation failed: %w", err)
	}
	log := logger.FromContext(ctx).With("component", "classifier")
	if err != nil {
		log.Warn("optimiser stopped early, keeping best parameters", "error", err, "status", result.Status.String())
	}

	lr.Coef = append([]float64(nil), result.X[:d]...)
	lr.Intercept = result.X[d]
	lr.Iterations = result.MajorIterations
	lr.Converged = err == nil && result.Status != optimize.IterationLimit
	if !lr.Converged {
		log.Warn("classifier did not converge", "status", result.Status.String(), "iterations", lr.Iterations)
	}
	log.Debug("classifier fitted", "iterations", lr.Iterations, "loss", result.F)
	return nil
}

// DecisionFunction returns Xw + b per row.
func (lr *LogisticRegression) DecisionFunction(x *mat.Dense) ([]float64, error) {
	n, d := x.Dims()
	if d != len(lr.Coef) {
		return nil, fmt.Errorf("logistic regression: fitted on %d features, got %d", len(lr.Coef), d)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = floats.Dot(x.RawRowView(i), lr.Coef) + lr.Intercept
	}
	return out, nil
}

// PredictProba returns the positive-class probability per row.
func (lr *LogisticRegression) PredictProba(x *mat.Dense) ([]float64, error) {
	scores, err := lr.DecisionFunction(x)
	if err != nil {
		return nil, err
	}
	for i, s := range scores {
		scores[i] = sigmoid(s)
	}
	return scores, nil
}

// Predict returns 1 where the decision value is positive.
func (lr *LogisticRegression) Predict(x *mat.Dense) ([]int, error) {
	scores, err := lr.DecisionFunction(x)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(scores))
	for i, s := range scores {
		if s > 0 {
			labels[i] = 1
		}
	}
	return labels, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus is log(1 + e^z) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
