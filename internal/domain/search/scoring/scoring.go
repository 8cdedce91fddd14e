// Package scoring describes the weighted relevance factors used to rank
// candidates for one searcher.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
)

// FactorName identifies a relevance factor.
type FactorName string

// Catalogue of factors.
const (
	FactorAvailabilityOverlap FactorName = "availabilityOverlap"
	FactorDistance            FactorName = "distance"
	FactorBabyExperience      FactorName = "babyExperience"
	FactorRecommendationScore FactorName = "recommendationScore"
	FactorPremium             FactorName = "premium"
	FactorAvatarPresence      FactorName = "avatarPresence"
	FactorMaxChildren         FactorName = "maxChildren"
	FactorAboutLength         FactorName = "aboutLength"
	FactorLastActivity        FactorName = "lastActivity"
	FactorReceivedMessages    FactorName = "receivedMessages"
	FactorReceivedInvites     FactorName = "receivedInvites"
	FactorChildrenCount       FactorName = "childrenCount"
)

// Catalogue lists every known factor.
var Catalogue = []FactorName{
	FactorAvailabilityOverlap, FactorDistance, FactorBabyExperience,
	FactorRecommendationScore, FactorPremium, FactorAvatarPresence,
	FactorMaxChildren, FactorAboutLength, FactorLastActivity,
	FactorReceivedMessages, FactorReceivedInvites, FactorChildrenCount,
}

// IsValid reports whether n is in the catalogue.
func (n FactorName) IsValid() bool {
	for _, c := range Catalogue {
		if c == n {
			return true
		}
	}
	return false
}

var (
	// ErrUnknownFactor is returned for names outside the catalogue.
	ErrUnknownFactor = errors.New("unknown scoring factor")
	// ErrInvalidWeight is returned for negative or non-finite weights.
	ErrInvalidWeight = errors.New("invalid factor weight")
	// ErrDuplicateFactor is returned when a factor appears twice.
	ErrDuplicateFactor = errors.New("duplicate scoring factor")
)

// Kind selects how a factor turns document fields into a [0, 1] contribution.
type Kind int

// Factor kinds.
const (
	// KindDecay is a Gaussian decay around Origin on a numeric field or distance.
	KindDecay Kind = iota
	// KindCondition scores 1 when Condition matches, else 0.
	KindCondition
	// KindOverlap counts how many of Values a tag field carries, divided by len(Values).
	KindOverlap
	// KindRatio is min(field / Pivot, 1).
	KindRatio
)

func (k Kind) String() string {
	switch k {
	case KindDecay:
		return "decay"
	case KindCondition:
		return "condition"
	case KindOverlap:
		return "overlap"
	case KindRatio:
		return "ratio"
	}
	return "unknown"
}

// DistanceField is the pseudo field holding km from the search origin.
const DistanceField = "__distance"

// Params configures one factor. Which fields apply depends on Kind.
type Params struct {
	Kind      Kind
	Field     string
	Origin    float64
	Scale     float64
	Decay     float64
	Offset    float64
	Condition filter.Condition
	Values    []string
	Pivot     float64
}

// Validate checks that the fields required by Kind are present.
func (p Params) Validate() error {
	switch p.Kind {
	case KindDecay:
		if p.Field == "" || p.Scale <= 0 || p.Decay <= 0 || p.Decay >= 1 || p.Offset < 0 {
			return fmt.Errorf("decay needs field, scale > 0, 0 < decay < 1, offset >= 0")
		}
	case KindCondition:
		if p.Condition.Key() == "" {
			return fmt.Errorf("condition factor needs a condition")
		}
	case KindOverlap:
		if p.Field == "" || len(p.Values) == 0 {
			return fmt.Errorf("overlap needs field and values")
		}
	case KindRatio:
		if p.Field == "" || p.Pivot <= 0 {
			return fmt.Errorf("ratio needs field and pivot > 0")
		}
	default:
		return fmt.Errorf("unknown kind %d", p.Kind)
	}
	return nil
}

// Evaluate computes the factor value from a field value. For KindOverlap v
// is the matched count; KindCondition takes 1 or 0.
func (p Params) Evaluate(v float64) float64 {
	switch p.Kind {
	case KindDecay:
		d := math.Max(math.Abs(v-p.Origin)-p.Offset, 0)
		return math.Exp(-DecayConstant(p.Scale, p.Decay) * d * d)
	case KindCondition:
		if v > 0 {
			return 1
		}
		return 0
	case KindOverlap:
		return math.Min(v/float64(len(p.Values)), 1)
	case KindRatio:
		return math.Min(math.Max(v, 0)/p.Pivot, 1)
	}
	return 0
}

// DecayConstant returns c such that exp(-c*scale^2) == decay.
func DecayConstant(scale, decay float64) float64 {
	return -math.Log(decay) / (scale * scale)
}

// Factor is a named, weighted scoring function.
type Factor struct {
	Name   FactorName
	Weight float64
	Params Params
}

// Spec is an immutable set of factors.
type Spec struct {
	factors []Factor
	isTest  bool
}

// NewSpec validates factors and returns them ordered by name.
func NewSpec(factors []Factor, isTest bool) (Spec, error) {
	seen := make(map[FactorName]struct{}, len(factors))
	out := make([]Factor, 0, len(factors))
	for _, f := range factors {
		if !f.Name.IsValid() {
			return Spec{}, fmt.Errorf("%w: %q", ErrUnknownFactor, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return Spec{}, fmt.Errorf("%w: %q", ErrDuplicateFactor, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Weight < 0 || math.IsNaN(f.Weight) || math.IsInf(f.Weight, 0) {
			return Spec{}, fmt.Errorf("%w: %s=%v", ErrInvalidWeight, f.Name, f.Weight)
		}
		if err := f.Params.Validate(); err != nil {
			return Spec{}, fmt.Errorf("factor %s: %w", f.Name, err)
		}
		f.Params.Values = append([]string(nil), f.Params.Values...)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return Spec{factors: out, isTest: isTest}, nil
}

// Factors returns every factor, including zero-weight ones.
func (s Spec) Factors() []Factor {
	out := make([]Factor, len(s.factors))
	copy(out, s.factors)
	return out
}

// Enabled returns factors with weight > 0.
func (s Spec) Enabled() []Factor {
	var out []Factor
	for _, f := range s.factors {
		if f.Weight > 0 {
			out = append(out, f)
		}
	}
	return out
}

// Weight returns the weight of name.
func (s Spec) Weight(name FactorName) (float64, bool) {
	for _, f := range s.factors {
		if f.Name == name {
			return f.Weight, true
		}
	}
	return 0, false
}

// TotalWeight sums all weights.
func (s Spec) TotalWeight() float64 {
	var sum float64
	for _, f := range s.factors {
		sum += f.Weight
	}
	return sum
}

// IsTest marks searches run by staff for ranking experiments.
func (s Spec) IsTest() bool { return s.isTest }
