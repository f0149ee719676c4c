package linucb

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-clustering-bandits/bandit"
)

// SplitConfig parameterizes the Partitioned agent's irreversible split.
type SplitConfig struct {
	// GlobalDims is the number of leading arm dimensions frozen into the
	// global sub-estimator at split time.
	GlobalDims int
	// ErrThreshold is the moving-average prediction error at or below
	// which a context becomes the split leader.
	ErrThreshold float64
	// Window is the length of the trailing error window.
	Window int
}

func (c SplitConfig) validate(dim int) error {
	if c.GlobalDims <= 0 || c.GlobalDims >= dim {
		return &bandit.ConfigError{Param: "global_dims", Reason: "must be in (0, arm dimension)"}
	}
	if c.ErrThreshold <= 0 {
		return &bandit.ConfigError{Param: "err_threshold", Reason: "must be positive"}
	}
	if c.Window <= 0 {
		return &bandit.ConfigError{Param: "window", Reason: "must be positive"}
	}
	return nil
}

type pullRecord struct {
	arm    int
	reward float64
}

// Partitioned starts as independent full-dimension agents. Once a
// context's trailing moving-average prediction error settles at or below
// the threshold, that context becomes the leader: its estimate of the
// first GlobalDims coefficients is frozen as a permanent global
// sub-estimator and every per-context agent is refit, from its full
// history, into the remaining dimensions. The transition runs exactly
// once and is never reversed.
type Partitioned struct {
	arms  *bandit.VectorSet
	cfg   Config
	split SplitConfig

	perContext []*Agent
	histories  [][]pullRecord
	errWindows [][]float64

	// Split state. Written by one atomic transition in doSplit.
	isSplit       bool
	splitRound    int
	leader        int
	globalTheta   *mat.VecDense
	globalContrib []float64
	localArms     *bandit.VectorSet

	t       int
	lastCtx int
	last    int
	hist    []int
}

// NewPartitioned creates the partitioned variant over nContexts contexts.
func NewPartitioned(arms *bandit.VectorSet, nContexts int, cfg Config, split SplitConfig) (*Partitioned, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := split.validate(arms.Dim()); err != nil {
		return nil, err
	}
	if nContexts <= 0 {
		return nil, &bandit.ConfigError{Param: "n_contexts", Reason: "must be positive"}
	}
	agents := make([]*Agent, nContexts)
	for i := range agents {
		ag, err := NewAgent(arms, cfg)
		if err != nil {
			return nil, err
		}
		agents[i] = ag
	}
	return &Partitioned{
		arms:       arms,
		cfg:        cfg,
		split:      split,
		perContext: agents,
		histories:  make([][]pullRecord, nContexts),
		errWindows: make([][]float64, nContexts),
		hist:       make([]int, 0, cfg.Horizon),
	}, nil
}

// PullArm delegates to the full-dimension agent before the split; after it,
// arms are scored as the fixed global contribution plus the reduced-dim
// upper-confidence score.
func (a *Partitioned) PullArm(context int) int {
	a.lastCtx = context
	if !a.isSplit {
		a.last = a.perContext[context].PullArm(bandit.NoContext)
		a.hist = append(a.hist, a.last)
		return a.last
	}

	local := a.perContext[context]
	if local.Estimator().T() < local.Estimator().Dim() {
		a.last = local.Estimator().T() % a.arms.N()
	} else {
		scores := local.Scores()
		for i := range scores {
			scores[i] += a.globalContrib[i]
		}
		a.last = bandit.ArgMax(scores)
	}
	local.Record(a.last)
	a.hist = append(a.hist, a.last)
	return a.last
}

// Update records the observation, feeds the owning agent, and runs the
// split test while the agent is still unsplit.
func (a *Partitioned) Update(reward float64) error {
	a.histories[a.lastCtx] = append(a.histories[a.lastCtx], pullRecord{arm: a.last, reward: reward})

	if a.isSplit {
		residual := reward - a.globalContrib[a.last]
		if err := a.perContext[a.lastCtx].Update(residual); err != nil {
			return err
		}
		a.t++
		return nil
	}

	local := a.perContext[a.lastCtx]
	predErr := math.Abs(reward - local.Estimator().Predict(a.arms.Vec(a.last)))
	if err := local.Update(reward); err != nil {
		return err
	}

	win := append(a.errWindows[a.lastCtx], predErr)
	if len(win) > a.split.Window {
		win = win[len(win)-a.split.Window:]
	}
	a.errWindows[a.lastCtx] = win

	if len(win) == a.split.Window && mean(win) <= a.split.ErrThreshold {
		if err := a.doSplit(a.lastCtx); err != nil {
			return err
		}
	}
	a.t++
	return nil
}

// doSplit is the single Unsplit → Split transition: freeze the leader's
// leading coefficients, derive the fixed per-arm global contribution, and
// retroactively refit every context into the remaining dimensions. The
// refit replays each context's full (arm, reward) history with the global
// contribution subtracted, which reproduces exactly the statistic the
// agent would hold had it run in reduced dimension since round 0.
func (a *Partitioned) doSplit(leader int) error {
	k := a.split.GlobalDims
	full := a.perContext[leader].Estimator().Theta()
	a.globalTheta = mat.NewVecDense(k, nil)
	for j := 0; j < k; j++ {
		a.globalTheta.SetVec(j, full.AtVec(j))
	}

	a.globalContrib = make([]float64, a.arms.N())
	for i := 0; i < a.arms.N(); i++ {
		row := a.arms.Row(i)
		for j := 0; j < k; j++ {
			a.globalContrib[i] += a.globalTheta.AtVec(j) * row[j]
		}
	}

	localArms, err := a.arms.SliceDims(k, a.arms.Dim())
	if err != nil {
		return err
	}
	a.localArms = localArms

	for c := range a.perContext {
		ag, err := NewAgent(localArms, a.cfg)
		if err != nil {
			return err
		}
		for _, rec := range a.histories[c] {
			ag.Record(rec.arm)
			if err := ag.Update(rec.reward - a.globalContrib[rec.arm]); err != nil {
				return err
			}
		}
		a.perContext[c] = ag
	}

	a.isSplit = true
	a.splitRound = a.t
	a.leader = leader
	return nil
}

// History returns the ordered arm indices pulled so far.
func (a *Partitioned) History() []int { return a.hist }

// IsSplit reports whether the irreversible split has happened.
func (a *Partitioned) IsSplit() bool { return a.isSplit }

// SplitRound returns the round at which the split occurred; meaningful
// only when IsSplit is true.
func (a *Partitioned) SplitRound() int { return a.splitRound }

// Leader returns the context whose estimate seeded the global
// sub-estimator; meaningful only when IsSplit is true.
func (a *Partitioned) Leader() int { return a.leader }

// GlobalTheta returns the frozen global coefficients, or nil before the
// split. Read-only.
func (a *Partitioned) GlobalTheta() *mat.VecDense { return a.globalTheta }

// ContextAgent exposes the agent owned by one context. Read-only.
func (a *Partitioned) ContextAgent(context int) *Agent { return a.perContext[context] }

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
