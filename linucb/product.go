package linucb

import "github.com/n0madic/go-clustering-bandits/bandit"

// Product combines a global agent, which models the context-independent
// reward component, with one agent per context modelling the residual.
// Arm selection sums both score vectors; the jointly chosen index is then
// recorded by both sub-agents so their statistics advance together.
type Product struct {
	arms       *bandit.VectorSet
	global     *Agent
	perContext []*Agent

	lastCtx int
	last    int
	hist    []int
}

// NewProduct creates the global-plus-residual composition.
func NewProduct(arms *bandit.VectorSet, nContexts int, cfg Config) (*Product, error) {
	if nContexts <= 0 {
		return nil, &bandit.ConfigError{Param: "n_contexts", Reason: "must be positive"}
	}
	global, err := NewAgent(arms, cfg)
	if err != nil {
		return nil, err
	}
	agents := make([]*Agent, nContexts)
	for i := range agents {
		ag, err := NewAgent(arms, cfg)
		if err != nil {
			return nil, err
		}
		agents[i] = ag
	}
	return &Product{
		arms:       arms,
		global:     global,
		perContext: agents,
		hist:       make([]int, 0, cfg.Horizon),
	}, nil
}

// PullArm plays the argmax of the summed upper-confidence scores. During
// the global agent's forced-exploration phase the deterministic cycle
// takes precedence so both statistics become well conditioned.
func (a *Product) PullArm(context int) int {
	a.lastCtx = context
	if a.global.Estimator().T() < a.global.Estimator().Dim() {
		a.last = a.global.Estimator().T() % a.arms.N()
	} else {
		global := a.global.Scores()
		local := a.perContext[context].Scores()
		sum := make([]float64, len(global))
		for i := range sum {
			sum[i] = global[i] + local[i]
		}
		a.last = bandit.ArgMax(sum)
	}
	a.global.Record(a.last)
	a.perContext[context].Record(a.last)
	a.hist = append(a.hist, a.last)
	return a.last
}

// Update first computes the residual against the pre-update global
// estimate, feeds it to the per-context agent, then updates the global
// agent on the raw reward. The ordering matters: updating the global
// estimator first would shift the residual.
func (a *Product) Update(reward float64) error {
	predicted := a.global.Estimator().Predict(a.arms.Vec(a.last))
	if err := a.perContext[a.lastCtx].Update(reward - predicted); err != nil {
		return err
	}
	return a.global.Update(reward)
}

// History returns the ordered arm indices pulled so far.
func (a *Product) History() []int { return a.hist }

// Global exposes the context-independent sub-agent. Read-only.
func (a *Product) Global() *Agent { return a.global }

// ContextAgent exposes the residual agent owned by one context. Read-only.
func (a *Product) ContextAgent(context int) *Agent { return a.perContext[context] }
