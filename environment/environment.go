// Package environment provides the synthetic stochastic-reward processes
// agents are simulated against: linear, contextual-linear and product
// environments. Each keeps a per-round clock and an internal reward log,
// and reseeds its noise stream deterministically per epoch so repeated
// experiments with one base seed are bit-identical.
package environment

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/n0madic/go-clustering-bandits/bandit"
)

// Linear rewards an action with theta·a plus Gaussian noise. The noise
// vector for the whole horizon is pre-generated at Reset from
// baseSeed + epoch.
type Linear struct {
	nRounds  int
	theta    []float64
	sigma    float64
	baseSeed int64

	t       int
	noise   []float64
	rewards []float64
}

// NewLinear creates a linear environment reset to epoch 0.
func NewLinear(nRounds int, theta []float64, sigma float64, seed int64) (*Linear, error) {
	if nRounds <= 0 {
		return nil, &bandit.ConfigError{Param: "n_rounds", Reason: "must be positive"}
	}
	if sigma < 0 {
		return nil, &bandit.ConfigError{Param: "sigma", Reason: "must be non-negative"}
	}
	e := &Linear{
		nRounds:  nRounds,
		theta:    append([]float64(nil), theta...),
		sigma:    sigma,
		baseSeed: seed,
	}
	e.Reset(0)
	return e, nil
}

// Reset rewinds the clock and reseeds the noise stream from
// baseSeed + epoch.
func (e *Linear) Reset(epoch int) {
	e.t = 0
	e.rewards = e.rewards[:0]
	rng := rand.New(rand.NewSource(e.baseSeed + int64(epoch)))
	e.noise = gaussian(rng, e.nRounds, e.sigma)
}

// GetContext reports that the environment is non-contextual.
func (e *Linear) GetContext() int { return bandit.NoContext }

// Round realizes the reward for the action, logs it and advances the
// clock.
func (e *Linear) Round(action []float64) float64 {
	r := floats.Dot(e.theta, action) + e.noise[e.t]
	e.rewards = append(e.rewards, r)
	e.t++
	return r
}

// Rewards returns the reward log accumulated since the last Reset.
func (e *Linear) Rewards() []float64 { return e.rewards }

// ContextualLinear draws a context uniformly each round and rewards
// theta·psi(a, context) plus noise.
type ContextualLinear struct {
	nRounds  int
	contexts *bandit.VectorSet
	theta    []float64
	psi      bandit.FeatureMap
	sigma    float64
	baseSeed int64

	t       int
	lastCtx int
	rng     *rand.Rand
	noise   []float64
	rewards []float64
}

// NewContextualLinear creates a contextual environment reset to epoch 0.
// psi defaults to the identity map on the action.
func NewContextualLinear(nRounds int, contexts *bandit.VectorSet, theta []float64, psi bandit.FeatureMap, sigma float64, seed int64) (*ContextualLinear, error) {
	if nRounds <= 0 {
		return nil, &bandit.ConfigError{Param: "n_rounds", Reason: "must be positive"}
	}
	if sigma < 0 {
		return nil, &bandit.ConfigError{Param: "sigma", Reason: "must be non-negative"}
	}
	if len(theta) != contexts.Dim() {
		return nil, &bandit.ConfigError{Param: "theta", Reason: "dimension does not match context set"}
	}
	if psi == nil {
		psi = func(a, _ []float64) []float64 { return a }
	}
	e := &ContextualLinear{
		nRounds:  nRounds,
		contexts: contexts,
		theta:    append([]float64(nil), theta...),
		psi:      psi,
		sigma:    sigma,
		baseSeed: seed,
	}
	e.Reset(0)
	return e, nil
}

// Reset rewinds the clock and reseeds both the noise stream and the
// context draws from baseSeed + epoch. Noise for every (round, context)
// slot is pre-generated so single- and multi-context rounds share one
// deterministic stream.
func (e *ContextualLinear) Reset(epoch int) {
	e.t = 0
	e.rewards = e.rewards[:0]
	e.rng = rand.New(rand.NewSource(e.baseSeed + int64(epoch)))
	e.noise = gaussian(e.rng, e.nRounds*e.contexts.N(), e.sigma)
}

// GetContext draws the round's context uniformly at random.
func (e *ContextualLinear) GetContext() int {
	e.lastCtx = e.rng.Intn(e.contexts.N())
	return e.lastCtx
}

// GetContexts returns one context per slot: every context plays once per
// multi-user round.
func (e *ContextualLinear) GetContexts() []int {
	out := make([]int, e.contexts.N())
	for i := range out {
		out[i] = i
	}
	return out
}

func (e *ContextualLinear) reward(action []float64, context, slot int) float64 {
	f := e.psi(action, e.contexts.Row(context))
	return floats.Dot(e.theta, f) + e.noise[e.t*e.contexts.N()+slot]
}

// Round realizes the reward for the action under the last drawn context.
func (e *ContextualLinear) Round(action []float64) float64 {
	r := e.reward(action, e.lastCtx, 0)
	e.rewards = append(e.rewards, r)
	e.t++
	return r
}

// RoundAll realizes one reward per context slot, logs them in slot order
// and advances the clock by one round.
func (e *ContextualLinear) RoundAll(actions [][]float64) []float64 {
	out := make([]float64, len(actions))
	for slot, action := range actions {
		out[slot] = e.reward(action, slot, slot)
	}
	e.rewards = append(e.rewards, out...)
	e.t++
	return out
}

// Rewards returns the reward log accumulated since the last Reset.
func (e *ContextualLinear) Rewards() []float64 { return e.rewards }

// Product adds a context-specific parameter on top of the contextual
// environment: reward = theta·psi + theta_p[context]·psi + noise.
type Product struct {
	ContextualLinear
	thetaP *bandit.VectorSet
}

// NewProduct creates a product environment reset to epoch 0.
func NewProduct(nRounds int, contexts *bandit.VectorSet, theta []float64, thetaP *bandit.VectorSet, psi bandit.FeatureMap, sigma float64, seed int64) (*Product, error) {
	if thetaP == nil || thetaP.N() != contexts.N() || thetaP.Dim() != contexts.Dim() {
		return nil, &bandit.ConfigError{Param: "theta_p", Reason: "must hold one vector per context"}
	}
	inner, err := NewContextualLinear(nRounds, contexts, theta, psi, sigma, seed)
	if err != nil {
		return nil, err
	}
	return &Product{ContextualLinear: *inner, thetaP: thetaP}, nil
}

func (e *Product) reward(action []float64, context, slot int) float64 {
	f := e.psi(action, e.contexts.Row(context))
	return floats.Dot(e.theta, f) + floats.Dot(e.thetaP.Row(context), f) + e.noise[e.t*e.contexts.N()+slot]
}

// Round realizes the reward for the action under the last drawn context.
func (e *Product) Round(action []float64) float64 {
	r := e.reward(action, e.lastCtx, 0)
	e.rewards = append(e.rewards, r)
	e.t++
	return r
}

// RoundAll realizes one reward per context slot.
func (e *Product) RoundAll(actions [][]float64) []float64 {
	out := make([]float64, len(actions))
	for slot, action := range actions {
		out[slot] = e.reward(action, slot, slot)
	}
	e.rewards = append(e.rewards, out...)
	e.t++
	return out
}

func gaussian(rng *rand.Rand, n int, sigma float64) []float64 {
	out := make([]float64, n)
	if sigma == 0 {
		return out
	}
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out
}
