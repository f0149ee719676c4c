// Package simulation runs bandit agents against reward environments for a
// configured number of independent epochs, optionally in a fixed-size
// worker pool. Every epoch is built fresh from factories, so no mutable
// state is ever shared between epochs; correctness relies on that
// isolation rather than on locking.
package simulation

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/n0madic/go-clustering-bandits/bandit"
)

// Environment is the single-context-per-round reward capability the core
// drives. Round advances the internal clock by one and appends to the
// internal reward log.
type Environment interface {
	// GetContext returns the round's context index, or bandit.NoContext.
	GetContext() int
	// Round realizes and logs the reward for the chosen action vector.
	Round(action []float64) float64
	// Rewards returns the log accumulated since the last Reset.
	Rewards() []float64
	// Reset rewinds to round zero, reseeding deterministically from the
	// epoch offset.
	Reset(epoch int)
}

// MultiEnvironment is the several-contexts-per-round variant.
type MultiEnvironment interface {
	GetContexts() []int
	RoundAll(actions [][]float64) []float64
	Rewards() []float64
	Reset(epoch int)
}

// MultiAgent is implemented by agents that can serve every context slot of
// a round at once, such as the clustering bandit.
type MultiAgent interface {
	PullArms(contexts []int) []int
	UpdateAll(rewards []float64) error
	History() []int
}

// AgentFactory builds a fresh agent for one epoch.
type AgentFactory func(epoch int) (bandit.Agent, error)

// MultiAgentFactory builds a fresh multi-context agent for one epoch.
type MultiAgentFactory func(epoch int) (MultiAgent, error)

// EnvironmentFactory builds a fresh environment for one epoch. The core
// calls Reset(epoch) on the result before the first round.
type EnvironmentFactory func(epoch int) (Environment, error)

// MultiEnvironmentFactory builds a fresh multi-context environment.
type MultiEnvironmentFactory func(epoch int) (MultiEnvironment, error)

// EpochResult holds one epoch's full reward and action-index histories.
type EpochResult struct {
	Rewards []float64
	Actions []int
}

// Core drives agents against environments.
type Core struct {
	arms *bandit.VectorSet
}

// New creates a driver over the given immutable arm set.
func New(arms *bandit.VectorSet) *Core {
	return &Core{arms: arms}
}

// Simulation runs nEpochs independent epochs of nRounds rounds each.
// workers caps the degree of parallelism; values below two run epochs
// sequentially. A failing epoch never aborts or contaminates its
// siblings: its slot in the result is zero-valued and all epoch errors
// are joined into the returned error.
func (c *Core) Simulation(newAgent AgentFactory, newEnv EnvironmentFactory, nEpochs, nRounds, workers int) ([]EpochResult, error) {
	run := func(epoch int) (EpochResult, error) {
		agent, env, err := buildEpoch(newAgent, newEnv, epoch)
		if err != nil {
			return EpochResult{}, err
		}
		return c.epoch(agent, env, nRounds)
	}
	return runEpochs(run, nEpochs, workers)
}

// SimulationMulti is Simulation for multi-context-per-round agents and
// environments.
func (c *Core) SimulationMulti(newAgent MultiAgentFactory, newEnv MultiEnvironmentFactory, nEpochs, nRounds, workers int) ([]EpochResult, error) {
	run := func(epoch int) (EpochResult, error) {
		agent, err := newAgent(epoch)
		if err != nil {
			return EpochResult{}, fmt.Errorf("build agent: %w", err)
		}
		env, err := newEnv(epoch)
		if err != nil {
			return EpochResult{}, fmt.Errorf("build environment: %w", err)
		}
		env.Reset(epoch)
		return c.epochMulti(agent, env, nRounds)
	}
	return runEpochs(run, nEpochs, workers)
}

func buildEpoch(newAgent AgentFactory, newEnv EnvironmentFactory, epoch int) (bandit.Agent, Environment, error) {
	agent, err := newAgent(epoch)
	if err != nil {
		return nil, nil, fmt.Errorf("build agent: %w", err)
	}
	env, err := newEnv(epoch)
	if err != nil {
		return nil, nil, fmt.Errorf("build environment: %w", err)
	}
	env.Reset(epoch)
	return agent, env, nil
}

// epoch plays nRounds strictly sequentially: the pull at round t depends
// on every update through round t-1, so nothing inside an epoch may be
// parallelized.
func (c *Core) epoch(agent bandit.Agent, env Environment, nRounds int) (EpochResult, error) {
	for t := 0; t < nRounds; t++ {
		ctx := env.GetContext()
		armIndex := agent.PullArm(ctx)
		reward := env.Round(c.arms.Row(armIndex))
		if err := agent.Update(reward); err != nil {
			// A round is not idempotent; the whole epoch is invalid.
			return EpochResult{}, fmt.Errorf("round %d: %w", t, err)
		}
	}
	return EpochResult{
		Rewards: append([]float64(nil), env.Rewards()...),
		Actions: append([]int(nil), agent.History()...),
	}, nil
}

func (c *Core) epochMulti(agent MultiAgent, env MultiEnvironment, nRounds int) (EpochResult, error) {
	for t := 0; t < nRounds; t++ {
		contexts := env.GetContexts()
		armIndexes := agent.PullArms(contexts)
		actions := make([][]float64, len(armIndexes))
		for i, armIndex := range armIndexes {
			actions[i] = c.arms.Row(armIndex)
		}
		rewards := env.RoundAll(actions)
		if err := agent.UpdateAll(rewards); err != nil {
			return EpochResult{}, fmt.Errorf("round %d: %w", t, err)
		}
	}
	return EpochResult{
		Rewards: append([]float64(nil), env.Rewards()...),
		Actions: append([]int(nil), agent.History()...),
	}, nil
}

func runEpochs(run func(epoch int) (EpochResult, error), nEpochs, workers int) ([]EpochResult, error) {
	results := make([]EpochResult, nEpochs)
	errs := make([]error, nEpochs)

	if workers < 2 {
		for i := 0; i < nEpochs; i++ {
			results[i], errs[i] = run(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i := 0; i < nEpochs; i++ {
			i := i
			g.Go(func() error {
				results[i], errs[i] = run(i)
				return nil
			})
		}
		// Goroutines only write their own slot; Wait cannot fail.
		_ = g.Wait()
	}

	for i, err := range errs {
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"epoch": i,
				"error": err,
			}).Error("simulation: epoch failed")
			errs[i] = fmt.Errorf("epoch %d: %w", i, err)
		}
	}
	return results, errors.Join(errs...)
}
