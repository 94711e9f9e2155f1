// Package catalog loads the read-only reference data the rule evaluators
// consume: identity base values, sub-lineage modifiers, age-tier tables,
// per-identity peak/half-width timing parameters, and claim rule tables.
// Catalogs are consumed by value and never mutated after load.
package catalog

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Identity holds the reference parameters for one cultivar, breed, or variety.
type Identity struct {
	Name               string  `yaml:"name"`
	BaseValue          float64 `yaml:"base_value"`
	PeakHeatUnits      float64 `yaml:"peak_heat_units"`
	HalfWidthHeatUnits float64 `yaml:"half_width_heat_units"`
	MinBearingAge      float64 `yaml:"min_bearing_age"`
}

// AgeTier is one life-stage bucket with a fixed signed offset.
// MaxAge of zero marks the open-ended final bucket.
type AgeTier struct {
	Name   string  `yaml:"name"`
	MaxAge float64 `yaml:"max_age"`
	Offset float64 `yaml:"offset"`
}

// AcidCurve parameterizes the secondary acid metric as an exponential decay
// over accumulated heat units.
type AcidCurve struct {
	BasePct   float64 `yaml:"base_pct"`
	DecayRate float64 `yaml:"decay_rate"`
}

// GradientSpec is the reference table for identity+timing categories
// (produce, coffee): base value per identity plus modifier tables.
type GradientSpec struct {
	PhysicalMin      float64             `yaml:"physical_min"`
	PhysicalMax      float64             `yaml:"physical_max"`
	DefaultBase      float64             `yaml:"default_base"`
	TierTop          float64             `yaml:"tier_top"`
	TierHigh         float64             `yaml:"tier_high"`
	TierMid          float64             `yaml:"tier_mid"`
	TimingMaxBonus   float64             `yaml:"timing_max_bonus"`
	TimingMinPenalty float64             `yaml:"timing_min_penalty"`
	AcidCurve        *AcidCurve          `yaml:"acid_curve,omitempty"`
	Identities       map[string]Identity `yaml:"identities"`
	SubLineages      map[string]float64  `yaml:"sub_lineages"`
	AgeTiers         []AgeTier           `yaml:"age_tiers"`
}

// Identity looks up an identity by code, case-insensitive.
func (g GradientSpec) Identity(code string) (Identity, bool) {
	id, ok := g.Identities[strings.ToLower(strings.TrimSpace(code))]
	return id, ok
}

// AgeOffset returns the age-tier name and offset for the given age.
func AgeOffset(tiers []AgeTier, age float64) (string, float64) {
	for _, t := range tiers {
		if t.MaxAge > 0 && age <= t.MaxAge {
			return t.Name, t.Offset
		}
		if t.MaxAge == 0 { // open-ended final bucket
			return t.Name, t.Offset
		}
	}
	return "", 0
}

// ClaimRule maps marketing-claim strings onto a discrete practice profile
// with a canonical metric range.
type ClaimRule struct {
	Profile        string   `yaml:"profile"`
	Claims         []string `yaml:"claims"`
	Midpoint       float64  `yaml:"midpoint"`
	Min            float64  `yaml:"min"`
	Max            float64  `yaml:"max"`
	ImpliesOutdoor bool     `yaml:"implies_outdoor"`
}

// Matches reports whether any of the supplied claim strings match this rule.
func (r ClaimRule) Matches(claims []string) bool {
	for _, c := range claims {
		lc := strings.ToLower(strings.TrimSpace(c))
		for _, want := range r.Claims {
			if strings.Contains(lc, want) {
				return true
			}
		}
	}
	return false
}

// ClaimSpec is the reference table for claim-driven categories (eggs):
// an ordered rule table, most specific first, plus a fallback profile.
type ClaimSpec struct {
	PhysicalMin    float64     `yaml:"physical_min"`
	PhysicalMax    float64     `yaml:"physical_max"`
	TierTop        float64     `yaml:"tier_top"`  // lower-is-better: value <= threshold
	TierHigh       float64     `yaml:"tier_high"`
	TierMid        float64     `yaml:"tier_mid"`
	ClaimRules     []ClaimRule `yaml:"claim_rules"`
	DefaultProfile ClaimRule   `yaml:"default_profile"`
	AgeTiers       []AgeTier   `yaml:"age_tiers"`
}

// Resolve walks the ordered rule table and returns the first matching
// profile, falling back to the default profile.
func (s ClaimSpec) Resolve(claims []string) (ClaimRule, bool) {
	for _, r := range s.ClaimRules {
		if r.Matches(claims) {
			return r, true
		}
	}
	return s.DefaultProfile, false
}

// Catalog is the full set of reference tables.
type Catalog struct {
	Produce GradientSpec `yaml:"produce"`
	Coffee  GradientSpec `yaml:"coffee"`
	Eggs    ClaimSpec    `yaml:"eggs"`
}

// Load parses the catalog from the given file, or from the embedded
// defaults when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultsYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read %s", path)
		}
		data = b
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks tier ordering and physical ranges.
func (c *Catalog) Validate() error {
	var errs []string

	for name, g := range map[string]GradientSpec{"produce": c.Produce, "coffee": c.Coffee} {
		if g.PhysicalMax <= g.PhysicalMin {
			errs = append(errs, name+": physical_max must exceed physical_min")
		}
		if !(g.TierTop > g.TierHigh && g.TierHigh > g.TierMid) {
			errs = append(errs, name+": tier thresholds must be strictly decreasing top > high > mid")
		}
		for code, id := range g.Identities {
			if id.BaseValue < g.PhysicalMin || id.BaseValue > g.PhysicalMax {
				errs = append(errs, name+": identity "+code+" base value outside physical range")
			}
			if id.HalfWidthHeatUnits <= 0 {
				errs = append(errs, name+": identity "+code+" half width must be positive")
			}
		}
		if len(g.AgeTiers) < 3 {
			errs = append(errs, name+": at least three age tiers required")
		}
	}

	e := c.Eggs
	if e.PhysicalMax <= e.PhysicalMin {
		errs = append(errs, "eggs: physical_max must exceed physical_min")
	}
	// Lower is better: thresholds ascend.
	if !(e.TierTop < e.TierHigh && e.TierHigh < e.TierMid) {
		errs = append(errs, "eggs: tier thresholds must be strictly increasing top < high < mid")
	}
	for _, r := range e.ClaimRules {
		if r.Min > r.Midpoint || r.Midpoint > r.Max {
			errs = append(errs, "eggs: profile "+r.Profile+" range must satisfy min <= midpoint <= max")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("catalog: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
