// Package experiment implements deterministic subject-to-variant assignment
// for staged rollout of alternate scoring logic. Assignments are derived
// from a stable hash and never stored: the same (experiment, subject) pair
// yields the same group across calls and process restarts.
package experiment

import (
	"hash/fnv"

	"github.com/rotisserie/eris"

	"github.com/ripefield/quality-cli/internal/config"
	"github.com/ripefield/quality-cli/internal/model"
)

// ErrInvalidExperimentConfig marks a malformed experiment configuration.
var ErrInvalidExperimentConfig = eris.New("experiment: invalid config")

// Bucketer assigns subjects to experiment groups under a default experiment.
type Bucketer struct {
	cfg config.ExperimentConfig
}

// NewBucketer validates the config and returns a bucketer. Malformed
// configuration fails fast rather than defaulting.
func NewBucketer(cfg config.ExperimentConfig) (*Bucketer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Bucketer{cfg: cfg}, nil
}

func validateConfig(cfg config.ExperimentConfig) error {
	if cfg.TrafficSplit < 0 || cfg.TrafficSplit > 1 {
		return eris.Wrapf(ErrInvalidExperimentConfig, "traffic_split %.3f outside [0,1]", cfg.TrafficSplit)
	}
	if cfg.Active && cfg.ID == "" {
		return eris.Wrap(ErrInvalidExperimentConfig, "active experiment requires an id")
	}
	return nil
}

// AssignGroup deterministically buckets a subject for the given experiment.
func AssignGroup(subjectID string, cfg config.ExperimentConfig) (model.ExperimentAssignment, error) {
	if err := validateConfig(cfg); err != nil {
		return model.ExperimentAssignment{}, err
	}

	fraction := hashFraction(cfg.ID, subjectID)

	asn := model.ExperimentAssignment{
		ExperimentID: cfg.ID,
		SubjectID:    subjectID,
		Fraction:     fraction,
	}
	if fraction < cfg.TrafficSplit {
		asn.Group = model.GroupTreatment
		asn.ModelTag = cfg.TreatmentTag
	} else {
		asn.Group = model.GroupControl
		asn.ModelTag = cfg.ControlTag
	}
	return asn, nil
}

// hashFraction maps (experiment, subject) to a stable fraction in [0,1)
// using FNV-1a 64. The low 53 bits are used: FNV-1a mixes them well for
// short keys, where the high bits stay correlated across sequential ids.
func hashFraction(experimentID, subjectID string) float64 {
	h := fnv.New64a()
	h.Write([]byte(experimentID))
	h.Write([]byte(":"))
	h.Write([]byte(subjectID))
	return float64(h.Sum64()&((1<<53)-1)) / float64(uint64(1)<<53)
}

// Assign buckets a subject under the bucketer's default experiment.
func (b *Bucketer) Assign(subjectID string) (model.ExperimentAssignment, error) {
	return AssignGroup(subjectID, b.cfg)
}

// Active reports whether the default experiment is taking traffic.
func (b *Bucketer) Active() bool {
	return b.cfg.Active && b.cfg.TrafficSplit > 0
}

// ShouldUseAlternate reports whether the subject resolves to the treatment
// group under the active default experiment.
func (b *Bucketer) ShouldUseAlternate(subjectID string) bool {
	if !b.Active() {
		return false
	}
	asn, err := b.Assign(subjectID)
	if err != nil {
		return false
	}
	return asn.Group == model.GroupTreatment
}
