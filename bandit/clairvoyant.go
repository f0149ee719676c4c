package bandit

import (
	"gonum.org/v1/gonum/mat"
)

// Clairvoyant always plays the arm with the highest true expected reward.
// It is used as the zero-regret reference when computing regret curves.
type Clairvoyant struct {
	arms     *VectorSet
	contexts *VectorSet
	theta    *mat.VecDense
	thetaP   *VectorSet
	psi      FeatureMap

	t    int
	last int
	hist []int
}

// NewClairvoyant builds the reference agent. contexts, thetaP and psi may
// be nil for the non-contextual setting; psi defaults to the elementwise
// product when contexts are given.
func NewClairvoyant(arms *VectorSet, theta []float64, contexts, thetaP *VectorSet, psi FeatureMap) (*Clairvoyant, error) {
	if len(theta) != arms.Dim() {
		return nil, &ConfigError{Param: "theta", Reason: "dimension does not match arms"}
	}
	if thetaP != nil && contexts == nil {
		return nil, &ConfigError{Param: "theta_p", Reason: "requires a context set"}
	}
	if psi == nil {
		psi = ElementwiseProduct
	}
	return &Clairvoyant{
		arms:     arms,
		contexts: contexts,
		theta:    mat.NewVecDense(len(theta), append([]float64(nil), theta...)),
		thetaP:   thetaP,
		psi:      psi,
	}, nil
}

// PullArm plays the true argmax for the given context.
func (c *Clairvoyant) PullArm(context int) int {
	scores := make([]float64, c.arms.N())
	for i := 0; i < c.arms.N(); i++ {
		if context == NoContext || c.contexts == nil {
			scores[i] = mat.Dot(c.theta, c.arms.Vec(i))
			continue
		}
		psi := c.psi(c.arms.Row(i), c.contexts.Row(context))
		v := mat.NewVecDense(len(psi), psi)
		scores[i] = mat.Dot(c.theta, v)
		if c.thetaP != nil {
			scores[i] += mat.Dot(c.thetaP.Vec(context), v)
		}
	}
	c.last = ArgMax(scores)
	c.hist = append(c.hist, c.last)
	return c.last
}

// Update only advances the round clock; the true parameters never change.
func (c *Clairvoyant) Update(float64) error {
	c.t++
	return nil
}

// History returns the ordered arm indices pulled so far.
func (c *Clairvoyant) History() []int { return c.hist }
