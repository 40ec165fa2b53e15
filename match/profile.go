// Package match selects compatible candidate profiles for a requester.
//
// Candidates must share at least one vibe with the requester. Survivors are
// then narrowed by the scalar filters in Filters and annotated with the
// great-circle distance to the requester when both sides share a location.
package match

import (
	"math"
	"strings"
)

// Gender is the self-described gender on a profile. The zero value means unset.
type Gender string

const (
	GenderMale           Gender = "Male"
	GenderFemale         Gender = "Female"
	GenderNonBinary      Gender = "Non-binary"
	GenderPreferNotToSay Gender = "Prefer not to say"
	// GenderAll is only meaningful inside Filters.
	GenderAll Gender = "All"
)

// Valid reports whether g may be stored on a profile.
func (g Gender) Valid() bool {
	switch g {
	case "", GenderMale, GenderFemale, GenderNonBinary, GenderPreferNotToSay:
		return true
	}
	return false
}

// Schedule is a lifestyle rhythm tag. The zero value means unset.
type Schedule string

const (
	ScheduleEarlyBird Schedule = "Early Bird"
	ScheduleNightOwl  Schedule = "Night Owl"
	ScheduleFlexible  Schedule = "Flexible"
	// ScheduleAll is only meaningful inside Filters.
	ScheduleAll Schedule = "All"
)

// Valid reports whether s may be stored on a profile.
func (s Schedule) Valid() bool {
	switch s {
	case "", ScheduleEarlyBird, ScheduleNightOwl, ScheduleFlexible:
		return true
	}
	return false
}

// Location is a coordinate pair in decimal degrees.
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

// Valid reports whether the coordinates are finite and inside ±90/±180.
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lon, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

// Profile is one user's discoverable identity.
type Profile struct {
	UserID        string    `json:"user_id" bson:"user_id"`
	Name          string    `json:"name" bson:"name"`
	Bio           string    `json:"bio,omitempty" bson:"bio,omitempty"`
	Tags          []string  `json:"tags" bson:"tags"`
	Moods         []string  `json:"moods" bson:"moods"`
	Age           int       `json:"age,omitempty" bson:"age,omitempty"`
	Gender        Gender    `json:"gender,omitempty" bson:"gender,omitempty"`
	Schedule      Schedule  `json:"schedule,omitempty" bson:"schedule,omitempty"`
	PetFriendly   bool      `json:"pet_friendly" bson:"pet_friendly"`
	Location      *Location `json:"location,omitempty" bson:"location,omitempty"`
	IsDeactivated bool      `json:"is_deactivated" bson:"is_deactivated"`
	ImageURL      string    `json:"image_url,omitempty" bson:"image_url,omitempty"`
}

// Normalize brings a freshly decoded record into shape: vibes and moods are
// trimmed, deduplicated and restricted to the vocabulary, an invalid location
// is dropped and out-of-range scalars are reset to "unknown".
func (p *Profile) Normalize() {
	p.UserID = strings.TrimSpace(p.UserID)
	p.Name = strings.TrimSpace(p.Name)
	p.Tags = normalizeVocabulary(p.Tags, vibeSet)
	p.Moods = normalizeVocabulary(p.Moods, moodSet)
	if p.Age < 0 {
		p.Age = 0
	}
	if !p.Gender.Valid() {
		p.Gender = ""
	}
	if !p.Schedule.Valid() {
		p.Schedule = ""
	}
	if p.Location != nil && !p.Location.Valid() {
		p.Location = nil
	}
}

// HasTag reports whether the profile carries the vibe.
func (p *Profile) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ProfileUpdate is a partial profile write. Nil fields are left untouched.
type ProfileUpdate struct {
	Name          *string   `json:"name,omitempty"`
	Bio           *string   `json:"bio,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	Moods         *[]string `json:"moods,omitempty"`
	Age           *int      `json:"age,omitempty"`
	Gender        *Gender   `json:"gender,omitempty"`
	Schedule      *Schedule `json:"schedule,omitempty"`
	PetFriendly   *bool     `json:"pet_friendly,omitempty"`
	Location      *Location `json:"location,omitempty"`
	ClearLocation bool      `json:"clear_location,omitempty"`
	IsDeactivated *bool     `json:"is_deactivated,omitempty"`
	ImageURL      *string   `json:"image_url,omitempty"`
}

// Apply merges u into p and normalizes the result.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.Tags != nil {
		p.Tags = append([]string(nil), (*u.Tags)...)
	}
	if u.Moods != nil {
		p.Moods = append([]string(nil), (*u.Moods)...)
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.Gender != nil {
		p.Gender = *u.Gender
	}
	if u.Schedule != nil {
		p.Schedule = *u.Schedule
	}
	if u.PetFriendly != nil {
		p.PetFriendly = *u.PetFriendly
	}
	if u.ClearLocation {
		p.Location = nil
	} else if u.Location != nil {
		loc := *u.Location
		p.Location = &loc
	}
	if u.IsDeactivated != nil {
		p.IsDeactivated = *u.IsDeactivated
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	p.Normalize()
}

// Validate rejects updates that would store values outside the schema.
func (u ProfileUpdate) Validate() error {
	if u.Age != nil && (*u.Age < 0 || *u.Age > 130) {
		return ErrInvalidProfile
	}
	if u.Gender != nil && !u.Gender.Valid() {
		return ErrInvalidProfile
	}
	if u.Schedule != nil && !u.Schedule.Valid() {
		return ErrInvalidProfile
	}
	if u.Location != nil && !u.Location.Valid() {
		return ErrInvalidProfile
	}
	return nil
}
