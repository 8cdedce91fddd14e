// Package scoring builds the relevance factors for one searcher from the
// role-specific default catalogues.
package scoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/sitly-nl/matchsearch/internal/domain/availability"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
	domscoring "github.com/sitly-nl/matchsearch/internal/domain/search/scoring"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// ErrNoWeight is returned when every factor ends up with weight zero.
var ErrNoWeight = errors.New("relevance needs a positive total weight")

// Curve parameters shared by both catalogues.
const (
	distanceScaleKm      = 10
	lastActiveScale      = 14 * 24 * time.Hour
	lastActiveOffset     = 24 * time.Hour
	halfDecay            = 0.5
	recommendationPivot  = 5
	aboutLengthPivot     = 300
	receivedMessageScale = 10
	receivedInviteScale  = 5
	childrenCountScale   = 2
	babyAge              = 2 * 365 * 24 * time.Hour
)

// Input is what the builder knows about the search.
type Input struct {
	Searcher *user.User
	// Availability is the grid to score overlap against.
	Availability availability.Grid
	// Location is the search origin; nil disables the distance factor.
	Location *geo.Point
	// Override replaces default weights of the named factors.
	Override map[domscoring.FactorName]float64
	IsTest   bool
}

// Builder assembles scoring specs.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// WithClock replaces the time source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build returns the searcher's default catalogue with overrides applied.
// Parents rank caregivers; caregivers rank parents. Availability overlap
// adds its weight once per overlapping cell.
func (b *Builder) Build(in Input) (domscoring.Spec, error) {
	if in.Searcher == nil {
		return domscoring.Spec{}, fmt.Errorf("scoring needs a searcher")
	}
	now := b.now()

	var defs []weighted
	var err error
	if in.Searcher.SeeksCare() {
		defs, err = caregiverCatalogue(in, now)
	} else {
		defs, err = parentCatalogue(in, now)
	}
	if err != nil {
		return domscoring.Spec{}, err
	}

	factors := make([]domscoring.Factor, 0, len(defs))
	for _, d := range defs {
		w := d.weight
		if o, ok := in.Override[d.name]; ok {
			w = o
		}
		factors = append(factors, domscoring.Factor{Name: d.name, Weight: w * d.multiplier, Params: d.params})
	}

	spec, err := domscoring.NewSpec(factors, in.IsTest)
	if err != nil {
		return domscoring.Spec{}, err
	}
	if spec.TotalWeight() <= 0 {
		return domscoring.Spec{}, ErrNoWeight
	}
	return spec, nil
}

// weighted is a catalogue entry before overrides.
type weighted struct {
	name   domscoring.FactorName
	weight float64
	// multiplier scales the final weight; overlap uses the cell count.
	multiplier float64
	params     domscoring.Params
}

func entry(name domscoring.FactorName, w float64, p domscoring.Params) weighted {
	return weighted{name: name, weight: w, multiplier: 1, params: p}
}

// caregiverCatalogue scores caregivers for a parent.
func caregiverCatalogue(in Input, now time.Time) ([]weighted, error) {
	u := in.Searcher
	var out []weighted

	if e, ok := overlap(in.Availability, 4); ok {
		out = append(out, e)
	}
	if in.Location != nil {
		out = append(out, entry(domscoring.FactorDistance, 3, distanceParams()))
	}
	if u.HasChildYoungerThan(babyAge, now) {
		c, err := filter.AtLeast(user.FieldBabyExperience, 1)
		if err != nil {
			return nil, err
		}
		out = append(out, entry(domscoring.FactorBabyExperience, 2, condition(c)))
	}
	out = append(out, entry(domscoring.FactorRecommendationScore, 2, domscoring.Params{
		Kind: domscoring.KindRatio, Field: user.FieldRecommendationScore, Pivot: recommendationPivot,
	}))

	premium, err := filter.AtLeast(user.FieldPremium, 1)
	if err != nil {
		return nil, err
	}
	out = append(out, entry(domscoring.FactorPremium, 1, condition(premium)))

	avatar, err := filter.AtLeast(user.FieldHasAvatar, 1)
	if err != nil {
		return nil, err
	}
	out = append(out, entry(domscoring.FactorAvatarPresence, 1, condition(avatar)))

	if u.ChildrenCount > 0 {
		c, err := filter.AtLeast(user.FieldMaxChildren, float64(u.ChildrenCount))
		if err != nil {
			return nil, err
		}
		out = append(out, entry(domscoring.FactorMaxChildren, 1, condition(c)))
	}
	out = append(out,
		entry(domscoring.FactorAboutLength, 1, domscoring.Params{
			Kind: domscoring.KindRatio, Field: user.FieldAboutLength, Pivot: aboutLengthPivot,
		}),
		entry(domscoring.FactorLastActivity, 1, lastActivityParams(now)),
	)
	return out, nil
}

// parentCatalogue scores parents for a caregiver.
func parentCatalogue(in Input, now time.Time) ([]weighted, error) {
	u := in.Searcher
	var out []weighted

	if in.Location != nil {
		out = append(out, entry(domscoring.FactorDistance, 4, distanceParams()))
	}
	out = append(out, entry(domscoring.FactorLastActivity, 3, lastActivityParams(now)))
	if e, ok := overlap(in.Availability, 3); ok {
		out = append(out, e)
	}
	out = append(out,
		entry(domscoring.FactorReceivedMessages, 2, domscoring.Params{
			Kind: domscoring.KindDecay, Field: user.FieldReceivedMessages,
			Scale: receivedMessageScale, Decay: halfDecay,
		}),
		entry(domscoring.FactorReceivedInvites, 1, domscoring.Params{
			Kind: domscoring.KindDecay, Field: user.FieldReceivedInvites,
			Scale: receivedInviteScale, Decay: halfDecay,
		}),
	)
	// Children at least as old as the caregiver's youngest accepted age.
	if !u.MinChildBirth.IsZero() {
		c, err := filter.AtMost(user.FieldYoungestChildBirth, float64(u.MinChildBirth.Unix()))
		if err != nil {
			return nil, err
		}
		out = append(out, entry(domscoring.FactorBabyExperience, 2, condition(c)))
	}
	out = append(out, entry(domscoring.FactorChildrenCount, 1, domscoring.Params{
		Kind: domscoring.KindDecay, Field: user.FieldChildrenCount,
		Origin: 1, Scale: childrenCountScale, Decay: halfDecay,
	}))

	avatar, err := filter.AtLeast(user.FieldHasAvatar, 1)
	if err != nil {
		return nil, err
	}
	out = append(out, entry(domscoring.FactorAvatarPresence, 1, condition(avatar)))
	return out, nil
}

// overlap matches each set cell against the candidate's availability tag.
// KindOverlap yields matched/len, so the cell count multiplier makes every
// matching cell worth w.
func overlap(grid availability.Grid, w float64) (weighted, bool) {
	keys := grid.Keys()
	if len(keys) == 0 {
		return weighted{}, false
	}
	return weighted{
		name:       domscoring.FactorAvailabilityOverlap,
		weight:     w,
		multiplier: float64(len(keys)),
		params: domscoring.Params{
			Kind: domscoring.KindOverlap, Field: user.FieldAvailability, Values: keys,
		},
	}, true
}

func distanceParams() domscoring.Params {
	return domscoring.Params{
		Kind: domscoring.KindDecay, Field: domscoring.DistanceField,
		Scale: distanceScaleKm, Decay: halfDecay,
	}
}

func lastActivityParams(now time.Time) domscoring.Params {
	return domscoring.Params{
		Kind:   domscoring.KindDecay,
		Field:  user.FieldLastActive,
		Origin: float64(now.Unix()),
		Scale:  lastActiveScale.Seconds(),
		Offset: lastActiveOffset.Seconds(),
		Decay:  halfDecay,
	}
}

func condition(c filter.Condition) domscoring.Params {
	return domscoring.Params{Kind: domscoring.KindCondition, Condition: c}
}
