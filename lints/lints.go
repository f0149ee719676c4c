// Package lints provides a Linear Thompson Sampling baseline over a fixed
// arm set: each round a parameter vector is sampled from the ridge
// posterior N(theta_hat, σ²V⁻¹) and the arm maximizing the sampled linear
// reward is played. Agents are constructed fresh per epoch and are not
// safe for concurrent use.
package lints

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-clustering-bandits/bandit"
	"github.com/n0madic/go-clustering-bandits/linucb"
)

// Agent is the Thompson-sampling baseline.
type Agent struct {
	arms   *bandit.VectorSet
	est    *linucb.Estimator
	sigma2 float64
	rng    *rand.Rand

	last int
	hist []int
}

// New creates the baseline. sigma2 scales the posterior covariance and
// must be positive; the seed fixes the sampling stream so runs are
// reproducible.
func New(arms *bandit.VectorSet, lambda, sigma2 float64, seed int64) (*Agent, error) {
	if sigma2 <= 0 {
		return nil, &bandit.ConfigError{Param: "sigma2", Reason: "must be positive"}
	}
	est, err := linucb.NewEstimator(arms.Dim(), lambda)
	if err != nil {
		return nil, err
	}
	return &Agent{
		arms:   arms,
		est:    est,
		sigma2: sigma2,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// PullArm samples theta from the posterior and plays its argmax.
func (a *Agent) PullArm(int) int {
	theta := a.sampleTheta()
	scores := make([]float64, a.arms.N())
	for i := range scores {
		scores[i] = mat.Dot(theta, a.arms.Vec(i))
	}
	a.last = bandit.ArgMax(scores)
	a.hist = append(a.hist, a.last)
	return a.last
}

// sampleTheta draws theta ~ N(theta_hat, σ²V⁻¹) through a Cholesky factor
// of the symmetrized covariance. If factorization fails the posterior mean
// is played, which degrades to pure exploitation for that round.
func (a *Agent) sampleTheta() *mat.VecDense {
	dim := a.est.Dim()
	cov := mat.NewSymDense(dim, nil)
	vInv := a.est.InverseV()
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			cov.SetSym(i, j, 0.5*a.sigma2*(vInv.At(i, j)+vInv.At(j, i)))
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(cov) {
		return mat.VecDenseCopyOf(a.est.Theta())
	}
	var lower mat.TriDense
	chol.LTo(&lower)

	z := mat.NewVecDense(dim, nil)
	for i := 0; i < dim; i++ {
		z.SetVec(i, a.rng.NormFloat64())
	}

	sample := mat.NewVecDense(dim, nil)
	sample.MulVec(&lower, z)
	sample.AddVec(sample, a.est.Theta())
	return sample
}

// Update feeds the reward for the last pulled arm into the estimator.
func (a *Agent) Update(reward float64) error {
	return a.est.Update(a.arms.Vec(a.last), reward)
}

// History returns the ordered arm indices pulled so far.
func (a *Agent) History() []int { return a.hist }

// Estimator exposes the underlying statistic. Read-only.
func (a *Agent) Estimator() *linucb.Estimator { return a.est }
