// Package club implements the CLUB dynamic clustering bandit: one
// LinUCB-like statistic per context plus an undirected hypothesis graph
// over contexts. Edges between contexts whose estimates separate beyond a
// confidence margin are cut, connected components are recomputed, and
// cluster statistics are re-derived from their members. Edges are only
// ever removed, so clusters split monotonically and never merge back.
package club

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-clustering-bandits/bandit"
)

// cluster aggregates the statistics of a set of contexts hypothesized to
// share one theta. Aggregates always equal the sum of the members'
// individual statistics, counting the λI regularizer once.
type cluster struct {
	members []int
	m       *mat.Dense
	b       *mat.VecDense
	mInv    *mat.Dense
	theta   *mat.VecDense
	n       int
}

// Option configures an Agent.
type Option func(*Agent)

// WithAlpha sets the edge-cut separation constant.
func WithAlpha(alpha float64) Option {
	return func(a *Agent) { a.alpha = alpha }
}

// WithLambda sets the ridge regularization of every statistic.
func WithLambda(lambda float64) Option {
	return func(a *Agent) { a.lambda = lambda }
}

// WithEdgeProbability initializes the hypothesis graph as a G(n, p) random
// graph drawn from the given seed instead of the dense default.
func WithEdgeProbability(p float64, seed int64) Option {
	return func(a *Agent) {
		a.edgeProb = p
		a.graphSeed = seed
	}
}

// Agent is the clustering bandit.
type Agent struct {
	arms      *bandit.VectorSet
	nContexts int
	horizon   int
	lambda    float64
	alpha     float64
	edgeProb  float64
	graphSeed int64

	// Per-context statistics.
	m     []*mat.Dense
	b     []*mat.VecDense
	mInv  []*mat.Dense
	theta []*mat.VecDense
	pulls []int

	graph     *simple.UndirectedGraph
	clusters  map[int]*cluster
	clusterID []int
	nextID    int

	// Active cluster count per round, for diagnostics.
	counts []int

	t         int
	lastCtx   int
	last      int
	lastCtxs  []int
	lastPulls []int
	hist      []int
}

// New creates a CLUB agent over nContexts contexts. The hypothesis graph
// starts dense (every pair connected) unless WithEdgeProbability is given,
// and all contexts start in one cluster.
func New(arms *bandit.VectorSet, nContexts, horizon int, opts ...Option) (*Agent, error) {
	if nContexts <= 0 {
		return nil, &bandit.ConfigError{Param: "n_contexts", Reason: "must be positive"}
	}
	if horizon <= 0 {
		return nil, &bandit.ConfigError{Param: "horizon", Reason: "must be positive"}
	}
	a := &Agent{
		arms:      arms,
		nContexts: nContexts,
		horizon:   horizon,
		lambda:    1,
		alpha:     1,
		edgeProb:  1,
		clusterID: make([]int, nContexts),
		counts:    make([]int, 0, horizon),
		hist:      make([]int, 0, horizon),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.lambda <= 0 {
		return nil, &bandit.ConfigError{Param: "lambda", Reason: "must be positive"}
	}
	if a.alpha <= 0 {
		return nil, &bandit.ConfigError{Param: "alpha", Reason: "must be positive"}
	}

	dim := arms.Dim()
	a.m = make([]*mat.Dense, nContexts)
	a.b = make([]*mat.VecDense, nContexts)
	a.mInv = make([]*mat.Dense, nContexts)
	a.theta = make([]*mat.VecDense, nContexts)
	a.pulls = make([]int, nContexts)
	for i := 0; i < nContexts; i++ {
		a.m[i] = regularized(dim, a.lambda)
		a.b[i] = mat.NewVecDense(dim, nil)
		a.mInv[i] = regularized(dim, 1/a.lambda)
		a.theta[i] = mat.NewVecDense(dim, nil)
	}

	a.graph = simple.NewUndirectedGraph()
	for i := 0; i < nContexts; i++ {
		a.graph.AddNode(simple.Node(i))
	}
	rng := rand.New(rand.NewSource(a.graphSeed))
	for i := 0; i < nContexts; i++ {
		for j := i + 1; j < nContexts; j++ {
			if a.edgeProb >= 1 || rng.Float64() < a.edgeProb {
				a.graph.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			}
		}
	}

	all := make([]int, nContexts)
	for i := range all {
		all[i] = i
	}
	root, err := a.buildCluster(all)
	if err != nil {
		return nil, err
	}
	a.clusters = map[int]*cluster{0: root}
	a.nextID = 1
	// A sparse initial graph may already be disconnected.
	if a.edgeProb < 1 {
		if err := a.realign(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func regularized(dim int, v float64) *mat.Dense {
	m := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		m.Set(i, i, v)
	}
	return m
}

// buildCluster aggregates member statistics: each member contributes
// M_i − λI to avoid double-counting the regularizer, plus one shared λI.
// Members are summed in sorted order so the aggregate is bit-identical
// across runs regardless of graph traversal order.
func (a *Agent) buildCluster(members []int) (*cluster, error) {
	sorted := append([]int(nil), members...)
	sort.Ints(sorted)

	dim := a.arms.Dim()
	c := &cluster{
		members: sorted,
		m:       regularized(dim, a.lambda),
		b:       mat.NewVecDense(dim, nil),
		mInv:    mat.NewDense(dim, dim, nil),
		theta:   mat.NewVecDense(dim, nil),
	}
	reg := regularized(dim, a.lambda)
	var delta mat.Dense
	for _, k := range sorted {
		delta.Sub(a.m[k], reg)
		c.m.Add(c.m, &delta)
		c.b.AddVec(c.b, a.b[k])
		c.n += a.pulls[k]
	}
	if err := c.mInv.Inverse(c.m); err != nil {
		return nil, &bandit.NumericError{Op: "cluster matrix inversion", Err: err}
	}
	c.theta.MulVec(c.mInv, c.b)
	return c, nil
}

// PullArm scores arms with the aggregated statistics of the cluster the
// context currently belongs to, using the cluster's pull count in the
// exploration bonus.
func (a *Agent) PullArm(context int) int {
	a.lastCtx = context
	c := a.clusters[a.clusterID[context]]
	beta := a.beta(c.n)
	scores := make([]float64, a.arms.N())
	for i := range scores {
		x := a.arms.Vec(i)
		var mx mat.VecDense
		mx.MulVec(c.mInv, x)
		q := mat.Dot(x, &mx)
		if q < 0 {
			q = 0
		}
		scores[i] = mat.Dot(c.theta, x) + beta*math.Sqrt(q)
	}
	a.last = bandit.ArgMax(scores)
	a.hist = append(a.hist, a.last)
	return a.last
}

// beta is the CLUB confidence radius
// sqrt(d·ln(1+N/d) + 4·ln t + ln 2) + 1, with t clamped to at least 1 so
// the first round cannot produce NaN scores.
func (a *Agent) beta(n int) float64 {
	t := a.t
	if t < 1 {
		t = 1
	}
	d := float64(a.arms.Dim())
	return math.Sqrt(d*math.Log(1+float64(n)/d)+4*math.Log(float64(t))+math.Ln2) + 1
}

// Update feeds the reward for the last pull into both the per-context and
// the aggregated cluster statistic, then runs one round of cluster
// maintenance.
func (a *Agent) Update(reward float64) error {
	if err := a.observe(a.lastCtx, a.last, reward); err != nil {
		return err
	}
	if err := a.maintain(); err != nil {
		return err
	}
	a.t++
	return nil
}

// PullArms selects one arm per context slot in a multi-user round.
func (a *Agent) PullArms(contexts []int) []int {
	a.lastPulls = make([]int, len(contexts))
	for i, ctx := range contexts {
		a.lastPulls[i] = a.PullArm(ctx)
	}
	a.lastCtxs = append(a.lastCtxs[:0], contexts...)
	return a.lastPulls
}

// UpdateAll feeds back one reward per slot of the preceding PullArms call,
// then runs cluster maintenance once for the whole round.
func (a *Agent) UpdateAll(rewards []float64) error {
	for i, reward := range rewards {
		if err := a.observe(a.lastCtxs[i], a.lastPulls[i], reward); err != nil {
			return err
		}
	}
	if err := a.maintain(); err != nil {
		return err
	}
	a.t++
	return nil
}

func (a *Agent) observe(context, armIndex int, reward float64) error {
	x := a.arms.Vec(armIndex)
	var outer mat.Dense
	outer.Outer(1, x, x)
	var scaled mat.VecDense
	scaled.ScaleVec(reward, x)

	a.m[context].Add(a.m[context], &outer)
	a.b[context].AddVec(a.b[context], &scaled)
	a.pulls[context]++
	if err := a.mInv[context].Inverse(a.m[context]); err != nil {
		return &bandit.NumericError{Op: "context matrix inversion", Err: err}
	}
	a.theta[context].MulVec(a.mInv[context], a.b[context])

	c := a.clusters[a.clusterID[context]]
	c.m.Add(c.m, &outer)
	c.b.AddVec(c.b, &scaled)
	c.n++
	if err := c.mInv.Inverse(c.m); err != nil {
		return &bandit.NumericError{Op: "cluster matrix inversion", Err: err}
	}
	c.theta.MulVec(c.mInv, c.b)
	return nil
}

// maintain cuts every still-present edge whose endpoints' estimates have
// separated beyond the confidence margin, then realigns clusters with the
// graph's connected components. Contexts with zero pulls are excluded
// from the separation test, their statistics being undefined.
func (a *Agent) maintain() error {
	cut := false
	for i := 0; i < a.nContexts; i++ {
		if a.pulls[i] == 0 {
			continue
		}
		for j := i + 1; j < a.nContexts; j++ {
			if a.pulls[j] == 0 || !a.graph.HasEdgeBetween(int64(i), int64(j)) {
				continue
			}
			var diff mat.VecDense
			diff.SubVec(a.theta[i], a.theta[j])
			sep := mat.Norm(&diff, 2)
			margin := a.alpha * (factT(a.pulls[i]) + factT(a.pulls[j]))
			if sep > margin {
				a.graph.RemoveEdge(int64(i), int64(j))
				cut = true
				logrus.WithFields(logrus.Fields{
					"round":      a.t,
					"edge":       [2]int{i, j},
					"separation": sep,
					"margin":     margin,
				}).Debug("club: cut edge")
			}
		}
	}
	if cut {
		if err := a.realign(); err != nil {
			return err
		}
	}
	a.counts = append(a.counts, len(a.clusters))
	return nil
}

// factT is the confidence-interval width term sqrt((1+ln(1+T))/(1+T)).
func factT(t int) float64 {
	return math.Sqrt((1 + math.Log(1+float64(t))) / (1 + float64(t)))
}

// realign recomputes connected components and materializes a new cluster
// for every fragment strictly smaller than its current cluster. The first
// fragment of a broken cluster keeps the old identifier, the rest take
// fresh ones; identifiers are opaque, membership is what matters.
func (a *Agent) realign() error {
	comps := topo.ConnectedComponents(a.graph)

	fragments := make(map[int][][]int)
	for _, comp := range comps {
		members := make([]int, len(comp))
		for i, node := range comp {
			members[i] = int(node.ID())
		}
		sort.Ints(members)
		cid := a.clusterID[members[0]]
		fragments[cid] = append(fragments[cid], members)
	}

	cids := make([]int, 0, len(fragments))
	for cid := range fragments {
		cids = append(cids, cid)
	}
	sort.Ints(cids)

	for _, cid := range cids {
		frags := fragments[cid]
		if len(frags) == 1 && len(frags[0]) == len(a.clusters[cid].members) {
			continue
		}
		sort.Slice(frags, func(i, j int) bool { return frags[i][0] < frags[j][0] })
		for fi, members := range frags {
			id := cid
			if fi > 0 {
				id = a.nextID
				a.nextID++
			}
			c, err := a.buildCluster(members)
			if err != nil {
				return err
			}
			a.clusters[id] = c
			for _, ctx := range members {
				a.clusterID[ctx] = id
			}
		}
		logrus.WithFields(logrus.Fields{
			"round":     a.t,
			"cluster":   cid,
			"fragments": len(frags),
			"active":    len(a.clusters),
		}).Debug("club: split cluster")
	}
	return nil
}

// History returns the ordered arm indices pulled so far.
func (a *Agent) History() []int { return a.hist }

// ClusterMembers returns the sorted member set of the cluster the context
// currently belongs to.
func (a *Agent) ClusterMembers(context int) []int {
	return append([]int(nil), a.clusters[a.clusterID[context]].members...)
}

// ActiveClusters returns the number of clusters currently materialized.
func (a *Agent) ActiveClusters() int { return len(a.clusters) }

// ClusterCounts returns the active cluster count recorded after each
// round's maintenance pass.
func (a *Agent) ClusterCounts() []int { return a.counts }

// Pulls returns how many times the context has been pulled.
func (a *Agent) Pulls(context int) int { return a.pulls[context] }

// HasEdge reports whether the hypothesis edge between two contexts is
// still present.
func (a *Agent) HasEdge(i, j int) bool {
	return a.graph.HasEdgeBetween(int64(i), int64(j))
}
