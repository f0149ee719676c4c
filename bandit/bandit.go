// Package bandit defines the capability interface shared by every bandit
// variant in this module, the immutable vector sets agents act on, and the
// error taxonomy used across packages.
package bandit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NoContext marks a pull that is not tied to any context index.
const NoContext = -1

// Agent is the decision-making capability implemented by all bandit
// variants. Within an epoch calls strictly alternate: PullArm, then Update
// with the reward observed for that pull.
type Agent interface {
	// PullArm selects an arm index for the given context
	// (NoContext for non-contextual agents).
	PullArm(context int) int
	// Update feeds back the reward observed for the last pulled arm.
	Update(reward float64) error
	// History returns the ordered arm indices pulled so far.
	History() []int
}

// FeatureMap combines an arm vector with a context feature vector into the
// vector actually fed to an estimator.
type FeatureMap func(arm, context []float64) []float64

// ElementwiseProduct is the default feature map: psi(a, x) = a ∘ x.
func ElementwiseProduct(arm, context []float64) []float64 {
	out := make([]float64, len(arm))
	for i := range arm {
		out[i] = arm[i] * context[i]
	}
	return out
}

// VectorSet is an immutable collection of equal-dimension real vectors.
// It backs both arm sets and context feature sets; agents must never
// mutate the rows it exposes.
type VectorSet struct {
	data *mat.Dense
	n    int
	dim  int
}

// NewVectorSet builds a set from row vectors. All rows must be non-empty
// and share one dimension.
func NewVectorSet(rows [][]float64) (*VectorSet, error) {
	if len(rows) == 0 {
		return nil, &ConfigError{Param: "vectors", Reason: "empty set"}
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, &ConfigError{Param: "vectors", Reason: "zero-dimensional rows"}
	}
	flat := make([]float64, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, &ConfigError{
				Param:  "vectors",
				Reason: fmt.Sprintf("row %d has dimension %d, want %d", i, len(r), dim),
			}
		}
		flat = append(flat, r...)
	}
	return &VectorSet{data: mat.NewDense(len(rows), dim, flat), n: len(rows), dim: dim}, nil
}

// N returns the number of vectors in the set.
func (s *VectorSet) N() int { return s.n }

// Dim returns the dimension shared by all vectors.
func (s *VectorSet) Dim() int { return s.dim }

// Row returns the i-th vector as a raw slice. Read-only.
func (s *VectorSet) Row(i int) []float64 { return s.data.RawRowView(i) }

// Vec returns the i-th vector as a gonum vector view. Read-only.
func (s *VectorSet) Vec(i int) mat.Vector { return s.data.RowView(i) }

// MaxNorm returns the largest Euclidean norm over the set.
func (s *VectorSet) MaxNorm() float64 {
	max := 0.0
	for i := 0; i < s.n; i++ {
		if n := mat.Norm(s.Vec(i), 2); n > max {
			max = n
		}
	}
	return max
}

// SliceDims returns a new set holding columns [from, to) of every vector.
func (s *VectorSet) SliceDims(from, to int) (*VectorSet, error) {
	if from < 0 || to > s.dim || from >= to {
		return nil, &ConfigError{
			Param:  "dims",
			Reason: fmt.Sprintf("slice [%d, %d) outside dimension %d", from, to, s.dim),
		}
	}
	rows := make([][]float64, s.n)
	for i := 0; i < s.n; i++ {
		row := make([]float64, to-from)
		copy(row, s.Row(i)[from:to])
		rows[i] = row
	}
	return NewVectorSet(rows)
}

// ArgMax returns the index of the first maximal element, matching the
// stable tie-break every agent relies on.
func ArgMax(xs []float64) int {
	best := math.Inf(-1)
	bestI := 0
	for i, x := range xs {
		if x > best {
			best = x
			bestI = i
		}
	}
	return bestI
}
