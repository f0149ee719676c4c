package bandit

import "math"

// UCB1 is the classical scalar upper-confidence baseline: it ignores arm
// features entirely and tracks one empirical mean per arm.
type UCB1 struct {
	arms      *VectorSet
	maxReward float64

	t     int
	avg   []float64
	pulls []int
	last  int
	hist  []int
}

// NewUCB1 builds the baseline. maxReward scales the exploration bonus and
// must be positive.
func NewUCB1(arms *VectorSet, maxReward float64) (*UCB1, error) {
	if maxReward <= 0 {
		return nil, &ConfigError{Param: "max_reward", Reason: "must be positive"}
	}
	return &UCB1{
		arms:      arms,
		maxReward: maxReward,
		avg:       make([]float64, arms.N()),
		pulls:     make([]int, arms.N()),
	}, nil
}

// PullArm plays each arm once, then the argmax of mean plus confidence
// bonus. The initial sweep is the cold-start guard: scores of untried arms
// would otherwise divide by a zero pull count.
func (u *UCB1) PullArm(int) int {
	u.last = -1
	for i, n := range u.pulls {
		if n == 0 {
			u.last = i
			break
		}
	}
	if u.last < 0 {
		scores := make([]float64, u.arms.N())
		for i := range scores {
			scores[i] = u.avg[i] + u.maxReward*math.Sqrt(2*math.Log(float64(u.t))/float64(u.pulls[i]))
		}
		u.last = ArgMax(scores)
	}
	u.pulls[u.last]++
	u.hist = append(u.hist, u.last)
	return u.last
}

// Update folds the reward into the pulled arm's running mean.
func (u *UCB1) Update(reward float64) error {
	n := float64(u.pulls[u.last])
	u.avg[u.last] = (u.avg[u.last]*(n-1) + reward) / n
	u.t++
	return nil
}

// History returns the ordered arm indices pulled so far.
func (u *UCB1) History() []int { return u.hist }
