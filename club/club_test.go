package club

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-clustering-bandits/bandit"
)

func mustVectorSet(t *testing.T, rows [][]float64) *bandit.VectorSet {
	t.Helper()
	s, err := bandit.NewVectorSet(rows)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})

	tests := []struct {
		name      string
		nContexts int
		horizon   int
		opts      []Option
		wantErr   bool
	}{
		{name: "valid defaults", nContexts: 4, horizon: 100},
		{name: "valid with options", nContexts: 4, horizon: 100, opts: []Option{WithAlpha(2), WithLambda(0.5)}},
		{name: "zero contexts", nContexts: 0, horizon: 100, wantErr: true},
		{name: "zero horizon", nContexts: 4, horizon: 0, wantErr: true},
		{name: "zero lambda", nContexts: 4, horizon: 100, opts: []Option{WithLambda(0)}, wantErr: true},
		{name: "zero alpha", nContexts: 4, horizon: 100, opts: []Option{WithAlpha(0)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(arms, tt.nContexts, tt.horizon, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, a.ActiveClusters())
			members := a.ClusterMembers(0)
			require.Len(t, members, tt.nContexts)
			for i, m := range members {
				assert.Equal(t, i, m)
			}
			for i := 0; i < tt.nContexts; i++ {
				for j := i + 1; j < tt.nContexts; j++ {
					assert.True(t, a.HasEdge(i, j), "edge (%d, %d) missing from dense graph", i, j)
				}
			}
		})
	}
}

func TestSparseGraphInit(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, 20, 100, WithEdgeProbability(0.3, 1))
	require.NoError(t, err)

	edges := 0
	for i := 0; i < 20; i++ {
		for j := i + 1; j < 20; j++ {
			if a.HasEdge(i, j) {
				edges++
			}
		}
	}
	assert.Greater(t, edges, 0)
	assert.Less(t, edges, 190)
	// A sparse init may already start with several components.
	assert.GreaterOrEqual(t, a.ActiveClusters(), 1)

	// Same seed, same graph.
	b, err := New(arms, 20, 100, WithEdgeProbability(0.3, 1))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		for j := i + 1; j < 20; j++ {
			assert.Equal(t, a.HasEdge(i, j), b.HasEdge(i, j))
		}
	}
}

// The first round must produce finite scores even though no context has
// been pulled yet.
func TestColdStart(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, 3, 10)
	require.NoError(t, err)

	armIndex := a.PullArm(0)
	require.GreaterOrEqual(t, armIndex, 0)
	require.Less(t, armIndex, arms.N())
	require.NoError(t, a.Update(1))
	assert.Equal(t, 1, a.Pulls(0))
	assert.Equal(t, 0, a.Pulls(1))

	// A single observation must not cut edges to zero-pull contexts.
	assert.Equal(t, 1, a.ActiveClusters())
	assert.True(t, a.HasEdge(0, 1))
	assert.True(t, a.HasEdge(0, 2))
}

// Contexts generating identical rewards never separate.
func TestIdenticalContextsStayClustered(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, 2, 100)
	require.NoError(t, err)

	for round := 0; round < 50; round++ {
		pulls := a.PullArms([]int{0, 1})
		rewards := make([]float64, len(pulls))
		for i, p := range pulls {
			rewards[i] = arms.Row(p)[0] // same reward law for both contexts
		}
		require.NoError(t, a.UpdateAll(rewards))
	}

	assert.Equal(t, 1, a.ActiveClusters())
	assert.Equal(t, []int{0, 1}, a.ClusterMembers(0))
	assert.True(t, a.HasEdge(0, 1))
}

// Contexts with opposite reward laws must split into singletons.
func TestOpposedContextsSplit(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, 2, 100)
	require.NoError(t, err)

	for round := 0; round < 50; round++ {
		a.PullArms([]int{0, 1})
		require.NoError(t, a.UpdateAll([]float64{1, -1}))
	}

	assert.Equal(t, 2, a.ActiveClusters())
	assert.Equal(t, []int{0}, a.ClusterMembers(0))
	assert.Equal(t, []int{1}, a.ClusterMembers(1))
	assert.False(t, a.HasEdge(0, 1))
}

// Edges are only ever removed, so the active cluster count never
// decreases.
func TestClusterCountMonotone(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, 4, 200)
	require.NoError(t, err)

	laws := []float64{1, 1, -1, 0.2}
	for round := 0; round < 120; round++ {
		a.PullArms([]int{0, 1, 2, 3})
		require.NoError(t, a.UpdateAll(laws))
	}

	counts := a.ClusterCounts()
	require.Len(t, counts, 120)
	for i := 1; i < len(counts); i++ {
		assert.GreaterOrEqual(t, counts[i], counts[i-1], "cluster count shrank at round %d", i)
	}
	// The opposed context must have left the initial cluster.
	assert.Greater(t, a.ActiveClusters(), 1)
	assert.NotContains(t, a.ClusterMembers(0), 2)
}

// component walks the hypothesis graph through the exported edge view and
// returns the sorted connected component of start.
func component(a *Agent, nContexts, start int) []int {
	seen := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for v := 0; v < nContexts; v++ {
			if !seen[v] && a.HasEdge(u, v) {
				seen[v] = true
				queue = append(queue, v)
			}
		}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Cluster membership must always equal the connected component of the
// hypothesis graph, recomputed independently from the surviving edges.
func TestMembershipMatchesComponents(t *testing.T) {
	const nContexts = 5
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, nContexts, 200)
	require.NoError(t, err)

	laws := []float64{1, 1, 1, -1, -1}
	for round := 0; round < 100; round++ {
		a.PullArms([]int{0, 1, 2, 3, 4})
		require.NoError(t, a.UpdateAll(laws))

		for i := 0; i < nContexts; i++ {
			assert.Equal(t, component(a, nContexts, i), a.ClusterMembers(i),
				"round %d: cluster of context %d diverged from its graph component", round, i)
		}
	}

	// The two reward groups must have ended up in separate components.
	assert.Equal(t, []int{0, 1, 2}, a.ClusterMembers(0))
	assert.Equal(t, []int{3, 4}, a.ClusterMembers(3))
}

// Cluster scores aggregate member statistics with the regularizer counted
// once: a two-member cluster after symmetric pulls must score like one
// statistic holding both observations.
func TestClusterAggregation(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, 2, 100)
	require.NoError(t, err)

	a.PullArms([]int{0, 1})
	require.NoError(t, a.UpdateAll([]float64{1, 1}))

	c := a.clusters[a.clusterID[0]]
	assert.Equal(t, 2, c.n)
	// Both contexts pulled the same arm with reward 1, so the aggregate
	// design matrix along that arm is λ + 2.
	pulled := a.hist[0]
	var diag float64
	for j, v := range arms.Row(pulled) {
		if v != 0 {
			diag = c.m.At(j, j)
		}
	}
	assert.InDelta(t, a.lambda+2, diag, 1e-12)
}

// Every cluster's aggregated design matrix must stay symmetric
// positive-definite through splits: aggregates are rebuilt from member
// statistics, so a counting slip would surface here as a lost λI.
func TestClusterMatrixPositiveDefinite(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, 4, 100)
	require.NoError(t, err)

	laws := []float64{1, 1, -1, 0.3}
	for round := 0; round < 60; round++ {
		a.PullArms([]int{0, 1, 2, 3})
		require.NoError(t, a.UpdateAll(laws))

		for _, c := range a.clusters {
			dim := arms.Dim()
			sym := mat.NewSymDense(dim, nil)
			for i := 0; i < dim; i++ {
				for j := i; j < dim; j++ {
					require.InDelta(t, c.m.At(i, j), c.m.At(j, i), 1e-12,
						"round %d cluster %v: M not symmetric at (%d,%d)", round, c.members, i, j)
					sym.SetSym(i, j, c.m.At(i, j))
				}
			}
			var eig mat.EigenSym
			require.True(t, eig.Factorize(sym, false),
				"round %d cluster %v: eigendecomposition failed", round, c.members)
			for _, ev := range eig.Values(nil) {
				assert.Greater(t, ev, 0.0,
					"round %d cluster %v: non-positive eigenvalue", round, c.members)
			}
		}
	}
}

func TestBetaFinite(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, 2, 10)
	require.NoError(t, err)

	for _, n := range []int{0, 1, 100} {
		b := a.beta(n)
		assert.False(t, math.IsNaN(b), "beta(%d) is NaN", n)
		assert.False(t, math.IsInf(b, 0), "beta(%d) is Inf", n)
		assert.Greater(t, b, 0.0)
	}
}

func TestHistoryAcrossRounds(t *testing.T) {
	arms := mustVectorSet(t, [][]float64{{1, 0}, {0, 1}})
	a, err := New(arms, 3, 50)
	require.NoError(t, err)

	for round := 0; round < 10; round++ {
		pulls := a.PullArms([]int{0, 1, 2})
		require.Len(t, pulls, 3)
		require.NoError(t, a.UpdateAll([]float64{1, 1, 1}))
	}
	assert.Len(t, a.History(), 30)
}
