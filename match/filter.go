package match

import (
	"fmt"
	"math"
)

// NoDistanceLimit disables the distance filter. Any negative MaxDistanceKm
// has the same effect.
const NoDistanceLimit = -1

// NoAgeLimit lifts the upper age bound. Any negative MaxAge has the same
// effect.
const NoAgeLimit = -1

// Filters is the caller-supplied bundle of optional matching constraints.
//
// Every field has a "no constraint" value: MinAge zero with MaxAge negative,
// Gender and Schedule empty or "All", MaxDistanceKm negative and
// PetFriendly false. PetFriendly is not symmetric: false never excludes
// anyone. Any other age pair is an inclusive range that profiles of unknown
// age never satisfy, so MaxAge 0 matches nobody.
type Filters struct {
	MinAge        int      `json:"min_age" bson:"min_age"`
	MaxAge        int      `json:"max_age" bson:"max_age"`
	Gender        Gender   `json:"gender" bson:"gender"`
	MaxDistanceKm float64  `json:"max_distance_km" bson:"max_distance_km"`
	MinVibeScore  int      `json:"min_vibe_score" bson:"min_vibe_score"`
	Schedule      Schedule `json:"schedule" bson:"schedule"`
	PetFriendly   bool     `json:"pet_friendly" bson:"pet_friendly"`
}

// DefaultFilters returns the constraints used when a user has none saved.
func DefaultFilters() Filters {
	return Filters{
		MinAge:        18,
		MaxAge:        99,
		Gender:        GenderAll,
		MaxDistanceKm: NoDistanceLimit,
		Schedule:      ScheduleAll,
	}
}

// Validate reports malformed filters. The engine tolerates them (an inverted
// age range simply matches nobody) so calling Validate is up to the caller.
func (f Filters) Validate() error {
	if f.MinAge < 0 {
		return fmt.Errorf("%w: min_age must be non-negative", ErrInvalidFilters)
	}
	if f.MaxAge >= 0 && f.MinAge > f.MaxAge {
		return fmt.Errorf("%w: min_age %d is greater than max_age %d", ErrInvalidFilters, f.MinAge, f.MaxAge)
	}
	if f.Gender != GenderAll && !f.Gender.Valid() {
		return fmt.Errorf("%w: unknown gender %q", ErrInvalidFilters, f.Gender)
	}
	if f.Schedule != ScheduleAll && !f.Schedule.Valid() {
		return fmt.Errorf("%w: unknown schedule %q", ErrInvalidFilters, f.Schedule)
	}
	if math.IsNaN(f.MaxDistanceKm) || math.IsInf(f.MaxDistanceKm, 0) {
		return fmt.Errorf("%w: max_distance_km must be finite", ErrInvalidFilters)
	}
	if f.MinVibeScore < 0 || f.MinVibeScore > 100 {
		return fmt.Errorf("%w: min_vibe_score must be within 0..100", ErrInvalidFilters)
	}
	return nil
}

func (f Filters) ageConstrained() bool {
	return f.MinAge > 0 || f.MaxAge >= 0
}

func (f Filters) distanceConstrained() bool {
	return f.MaxDistanceKm >= 0
}

// accepts evaluates the scalar and categorical predicates. Distance is
// handled separately because it depends on the requester.
func (f Filters) accepts(p *Profile) bool {
	if f.ageConstrained() {
		// unknown age never satisfies a range
		if p.Age <= 0 || p.Age < f.MinAge || (f.MaxAge >= 0 && p.Age > f.MaxAge) {
			return false
		}
	}
	if f.Gender != "" && f.Gender != GenderAll && p.Gender != f.Gender {
		return false
	}
	if f.Schedule != "" && f.Schedule != ScheduleAll && p.Schedule != f.Schedule {
		return false
	}
	if f.PetFriendly && !p.PetFriendly {
		return false
	}
	return true
}
