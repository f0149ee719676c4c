package simulation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/n0madic/go-clustering-bandits/bandit"
)

// Params is the typed testcase object produced by the generator tooling.
// The core consumes it purely as constructor parameters; no further
// parsing happens downstream.
type Params struct {
	Horizon      int         `json:"horizon"`
	NEpochs      int         `json:"n_epochs"`
	Sigma        float64     `json:"sigma"`
	Seed         int64       `json:"seed"`
	NArms        int         `json:"n_arms"`
	Arms         [][]float64 `json:"arms"`
	Theta        []float64   `json:"theta"`
	ContextSet   [][]float64 `json:"context_set,omitempty"`
	ThetaP       [][]float64 `json:"theta_p,omitempty"`
	MaxArmNorm   float64     `json:"max_arm_norm"`
	MaxThetaNorm float64     `json:"max_theta_norm"`
}

// LoadParams decodes and validates a testcase object.
func LoadParams(r io.Reader) (*Params, error) {
	var p Params
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParamsFromFile loads a testcase object from a JSON file.
func ParamsFromFile(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadParams(f)
}

// Validate checks internal consistency: positive horizon and epoch count,
// and matching dimensions across arms, theta, contexts and theta_p.
func (p *Params) Validate() error {
	if p.Horizon <= 0 {
		return &bandit.ConfigError{Param: "horizon", Reason: "must be positive"}
	}
	if p.NEpochs <= 0 {
		return &bandit.ConfigError{Param: "n_epochs", Reason: "must be positive"}
	}
	if p.Sigma < 0 {
		return &bandit.ConfigError{Param: "sigma", Reason: "must be non-negative"}
	}
	if len(p.Arms) == 0 {
		return &bandit.ConfigError{Param: "arms", Reason: "empty"}
	}
	dim := len(p.Arms[0])
	for i, a := range p.Arms {
		if len(a) != dim {
			return &bandit.ConfigError{Param: "arms", Reason: fmt.Sprintf("arm %d has dimension %d, want %d", i, len(a), dim)}
		}
	}
	if len(p.Theta) != dim {
		return &bandit.ConfigError{Param: "theta", Reason: "dimension does not match arms"}
	}
	for i, c := range p.ContextSet {
		if len(c) != dim {
			return &bandit.ConfigError{Param: "context_set", Reason: fmt.Sprintf("context %d has dimension %d, want %d", i, len(c), dim)}
		}
	}
	if len(p.ThetaP) > 0 {
		if len(p.ContextSet) == 0 {
			return &bandit.ConfigError{Param: "theta_p", Reason: "requires a context set"}
		}
		if len(p.ThetaP) != len(p.ContextSet) {
			return &bandit.ConfigError{Param: "theta_p", Reason: "must hold one vector per context"}
		}
		for i, t := range p.ThetaP {
			if len(t) != dim {
				return &bandit.ConfigError{Param: "theta_p", Reason: fmt.Sprintf("vector %d has dimension %d, want %d", i, len(t), dim)}
			}
		}
	}
	return nil
}

// ArmSet builds the immutable arm set described by the params.
func (p *Params) ArmSet() (*bandit.VectorSet, error) {
	return bandit.NewVectorSet(p.Arms)
}

// Contexts builds the context feature set, or nil when the testcase is
// non-contextual.
func (p *Params) Contexts() (*bandit.VectorSet, error) {
	if len(p.ContextSet) == 0 {
		return nil, nil
	}
	return bandit.NewVectorSet(p.ContextSet)
}

// ThetaPSet builds the per-context parameter set, or nil when absent.
func (p *Params) ThetaPSet() (*bandit.VectorSet, error) {
	if len(p.ThetaP) == 0 {
		return nil, nil
	}
	return bandit.NewVectorSet(p.ThetaP)
}
