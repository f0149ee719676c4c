// Package linucb implements the LinUCB family of linear bandit agents: the
// shared ridge-regression estimator, the plain agent, and its contextual,
// independent-per-context, product-combination and partitioned variants.
package linucb

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-clustering-bandits/bandit"
)

// Estimator maintains the ridge-regression sufficient statistic
// (V, b, V⁻¹, theta) with V = λI + Σ x xᵗ and theta = V⁻¹ b.
// The inverse is recomputed in full after every update rather than through
// a Sherman–Morrison rank-1 step; at the dimensions used here the full
// inverse is cheap and keeps test tolerances tight.
type Estimator struct {
	dim    int
	lambda float64

	v     *mat.Dense
	vInv  *mat.Dense
	b     *mat.VecDense
	theta *mat.VecDense
	t     int
}

// NewEstimator creates a statistic regularized by lambda > 0.
func NewEstimator(dim int, lambda float64) (*Estimator, error) {
	if dim <= 0 {
		return nil, &bandit.ConfigError{Param: "dim", Reason: "must be positive"}
	}
	if lambda <= 0 {
		return nil, &bandit.ConfigError{Param: "lambda", Reason: "must be positive"}
	}
	e := &Estimator{
		dim:    dim,
		lambda: lambda,
		v:      mat.NewDense(dim, dim, nil),
		vInv:   mat.NewDense(dim, dim, nil),
		b:      mat.NewVecDense(dim, nil),
		theta:  mat.NewVecDense(dim, nil),
	}
	for i := 0; i < dim; i++ {
		e.v.Set(i, i, lambda)
		e.vInv.Set(i, i, 1/lambda)
	}
	return e, nil
}

// Update folds one observation into the statistic:
// V ← V + x xᵗ, b ← b + reward·x, theta = V⁻¹ b.
func (e *Estimator) Update(x mat.Vector, reward float64) error {
	var outer mat.Dense
	outer.Outer(1, x, x)
	e.v.Add(e.v, &outer)

	var scaled mat.VecDense
	scaled.ScaleVec(reward, x)
	e.b.AddVec(e.b, &scaled)

	if err := e.vInv.Inverse(e.v); err != nil {
		// V ⪰ λI by construction, so this is an invariant violation.
		return &bandit.NumericError{Op: "design matrix inversion", Err: err}
	}
	e.theta.MulVec(e.vInv, e.b)
	e.t++
	return nil
}

// Predict returns the point estimate theta·x.
func (e *Estimator) Predict(x mat.Vector) float64 { return mat.Dot(e.theta, x) }

// Bonus returns the exploration width sqrt(xᵗ V⁻¹ x).
func (e *Estimator) Bonus(x mat.Vector) float64 {
	var vx mat.VecDense
	vx.MulVec(e.vInv, x)
	q := mat.Dot(x, &vx)
	if q < 0 {
		// Round-off can push a tiny quadratic form below zero.
		q = 0
	}
	return math.Sqrt(q)
}

// LogDetV returns ln det(V).
func (e *Estimator) LogDetV() float64 {
	det, _ := mat.LogDet(e.v)
	return det
}

// Theta returns the current ridge estimate. Read-only.
func (e *Estimator) Theta() *mat.VecDense { return e.theta }

// InverseV returns V⁻¹. Read-only; used by posterior-sampling agents.
func (e *Estimator) InverseV() *mat.Dense { return e.vInv }

// T returns the number of observations folded in so far.
func (e *Estimator) T() int { return e.t }

// Dim returns the statistic's dimension.
func (e *Estimator) Dim() int { return e.dim }

// Lambda returns the regularization parameter.
func (e *Estimator) Lambda() float64 { return e.lambda }
