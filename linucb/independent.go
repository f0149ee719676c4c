package linucb

import "github.com/n0madic/go-clustering-bandits/bandit"

// Independent runs one fully independent plain agent per context. No
// statistics are pooled, so regret grows linearly in the number of
// contexts, but no similarity assumption is needed either.
type Independent struct {
	perContext []*Agent

	lastCtx int
	hist    []int
}

// NewIndependent creates one plain agent per context.
func NewIndependent(arms *bandit.VectorSet, nContexts int, cfg Config) (*Independent, error) {
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
	return &Independent{
		perContext: agents,
		hist:       make([]int, 0, cfg.Horizon),
	}, nil
}

// PullArm delegates to the agent owning the context.
func (a *Independent) PullArm(context int) int {
	a.lastCtx = context
	i := a.perContext[context].PullArm(bandit.NoContext)
	a.hist = append(a.hist, i)
	return i
}

// Update routes the reward to the agent that made the last pull.
func (a *Independent) Update(reward float64) error {
	return a.perContext[a.lastCtx].Update(reward)
}

// History returns the ordered arm indices pulled so far.
func (a *Independent) History() []int { return a.hist }

// ContextAgent exposes the agent owned by one context. Read-only.
func (a *Independent) ContextAgent(context int) *Agent { return a.perContext[context] }
