package model

// Group is an experiment arm.
type Group string

const (
	GroupControl   Group = "control"
	GroupTreatment Group = "treatment"
)

// ExperimentAssignment is the deterministic user-to-variant assignment for
// one (experiment, subject) pair. Derived, never persisted; recomputed
// identically on every call.
type ExperimentAssignment struct {
	ExperimentID string  `json:"experiment_id"`
	SubjectID    string  `json:"subject_id"`
	Group        Group   `json:"group"`
	ModelTag     string  `json:"model_tag"`
	Fraction     float64 `json:"fraction"` // hash position in [0,1)
}
