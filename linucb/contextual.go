package linucb

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-clustering-bandits/bandit"
)

// Contextual is LinUCB with one global statistic shared across contexts.
// The vector fed to the estimator is the feature map psi(arm, context)
// rather than the raw arm, which lets a single estimator generalize.
type Contextual struct {
	arms     *bandit.VectorSet
	contexts *bandit.VectorSet
	psi      bandit.FeatureMap
	est      *Estimator
	cfg      Config

	lastCtx int
	last    int
	hist    []int
}

// NewContextual creates the feature-map variant. psi defaults to the
// elementwise product and must preserve the arm dimension.
func NewContextual(arms, contexts *bandit.VectorSet, psi bandit.FeatureMap, cfg Config) (*Contextual, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if contexts.Dim() != arms.Dim() {
		return nil, &bandit.ConfigError{Param: "context_set", Reason: "dimension does not match arms"}
	}
	if psi == nil {
		psi = bandit.ElementwiseProduct
	}
	if got := len(psi(arms.Row(0), contexts.Row(0))); got != arms.Dim() {
		return nil, &bandit.ConfigError{Param: "psi", Reason: "feature map must preserve the arm dimension"}
	}
	est, err := NewEstimator(arms.Dim(), cfg.Lambda)
	if err != nil {
		return nil, err
	}
	return &Contextual{
		arms:     arms,
		contexts: contexts,
		psi:      psi,
		est:      est,
		cfg:      cfg,
		hist:     make([]int, 0, cfg.Horizon),
	}, nil
}

func (a *Contextual) feature(armIndex, context int) *mat.VecDense {
	f := a.psi(a.arms.Row(armIndex), a.contexts.Row(context))
	return mat.NewVecDense(len(f), f)
}

// PullArm scores every arm through the feature map for the given context.
func (a *Contextual) PullArm(context int) int {
	a.lastCtx = context
	if a.est.T() < a.est.Dim() {
		a.last = a.est.T() % a.arms.N()
	} else {
		beta := a.beta()
		scores := make([]float64, a.arms.N())
		for i := range scores {
			x := a.feature(i, context)
			scores[i] = a.est.Predict(x) + beta*a.est.Bonus(x)
		}
		a.last = bandit.ArgMax(scores)
	}
	a.hist = append(a.hist, a.last)
	return a.last
}

func (a *Contextual) beta() float64 {
	t := a.est.T()
	if t < 1 {
		t = 1
	}
	logDetRatio := a.est.LogDetV() - float64(a.est.Dim())*math.Log(a.cfg.Lambda)
	return a.cfg.MaxThetaNorm*math.Sqrt(a.cfg.Lambda) +
		math.Sqrt(2*a.cfg.Sigma*a.cfg.Sigma*math.Log(float64(t))+logDetRatio)
}

// Update feeds psi(last arm, last context) into the shared estimator.
func (a *Contextual) Update(reward float64) error {
	return a.est.Update(a.feature(a.last, a.lastCtx), reward)
}

// History returns the ordered arm indices pulled so far.
func (a *Contextual) History() []int { return a.hist }
