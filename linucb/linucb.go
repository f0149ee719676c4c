package linucb

import (
	"math"

	"github.com/n0madic/go-clustering-bandits/bandit"
)

// Config carries the parameters shared by every LinUCB variant.
type Config struct {
	Horizon      int     // number of rounds the agent will play
	Lambda       float64 // ridge regularization, must be positive
	Sigma        float64 // reward noise standard deviation
	MaxThetaNorm float64 // known bound on ‖theta‖
	MaxArmNorm   float64 // known bound on ‖arm‖
}

func (c Config) validate() error {
	if c.Horizon <= 0 {
		return &bandit.ConfigError{Param: "horizon", Reason: "must be positive"}
	}
	if c.Lambda <= 0 {
		return &bandit.ConfigError{Param: "lambda", Reason: "must be positive"}
	}
	return nil
}

// Agent is plain LinUCB over a fixed arm set: a single estimator, a forced
// exploration phase for the first dim rounds, then upper-confidence play.
type Agent struct {
	arms *bandit.VectorSet
	est  *Estimator
	cfg  Config

	last int
	hist []int
}

// NewAgent creates a plain LinUCB agent.
func NewAgent(arms *bandit.VectorSet, cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	est, err := NewEstimator(arms.Dim(), cfg.Lambda)
	if err != nil {
		return nil, err
	}
	return &Agent{
		arms: arms,
		est:  est,
		cfg:  cfg,
		hist: make([]int, 0, cfg.Horizon),
	}, nil
}

// PullArm cycles deterministically through arm indices for the first dim
// rounds so that V becomes well conditioned before estimation, then plays
// the stable argmax of theta·a + β(t)·sqrt(aᵗ V⁻¹ a).
func (a *Agent) PullArm(int) int {
	if a.est.T() < a.est.Dim() {
		a.last = a.est.T() % a.arms.N()
	} else {
		a.last = bandit.ArgMax(a.Scores())
	}
	a.hist = append(a.hist, a.last)
	return a.last
}

// Record books an externally chosen arm index without scoring. Composite
// variants use it to keep sub-agent state consistent with a joint choice.
func (a *Agent) Record(armIndex int) {
	a.last = armIndex
	a.hist = append(a.hist, armIndex)
}

// Scores returns the current upper-confidence score of every arm.
func (a *Agent) Scores() []float64 {
	beta := a.beta()
	scores := make([]float64, a.arms.N())
	for i := range scores {
		x := a.arms.Vec(i)
		scores[i] = a.est.Predict(x) + beta*a.est.Bonus(x)
	}
	return scores
}

// beta is the self-normalized-martingale confidence radius
// maxThetaNorm·√λ + sqrt(2σ²·ln t + ln(det V / λ^dim)), evaluated on the
// current t and V.
func (a *Agent) beta() float64 {
	t := a.est.T()
	if t < 1 {
		t = 1
	}
	logDetRatio := a.est.LogDetV() - float64(a.est.Dim())*math.Log(a.cfg.Lambda)
	return a.cfg.MaxThetaNorm*math.Sqrt(a.cfg.Lambda) +
		math.Sqrt(2*a.cfg.Sigma*a.cfg.Sigma*math.Log(float64(t))+logDetRatio)
}

// Update feeds the reward for the last pulled arm into the estimator.
func (a *Agent) Update(reward float64) error {
	return a.est.Update(a.arms.Vec(a.last), reward)
}

// History returns the ordered arm indices pulled so far.
func (a *Agent) History() []int { return a.hist }

// Estimator exposes the underlying statistic. Read-only.
func (a *Agent) Estimator() *Estimator { return a.est }
