package match

import (
	"math"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileNormalize(t *testing.T) {
	p := Profile{
		UserID:   "  u1 ",
		Name:     " Robin ",
		Tags:     []string{"chill", "Chill", "Spaceship", " Focused"},
		Moods:    []string{"happy", "HAPPY", "Grumpy"},
		Age:      -4,
		Gender:   "Robot",
		Schedule: "Noon",
		Location: &Location{Lat: 120, Lon: 0},
	}
	p.Normalize()

	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "Robin", p.Name)
	assert.Equal(t, []string{"Chill", "Focused"}, p.Tags)
	assert.Equal(t, []string{"Happy"}, p.Moods)
	assert.Zero(t, p.Age)
	assert.Empty(t, p.Gender)
	assert.Empty(t, p.Schedule)
	assert.Nil(t, p.Location)
}

func TestLocationValid(t *testing.T) {
	assert.True(t, Location{Lat: 90, Lon: -180}.Valid())
	assert.False(t, Location{Lat: 90.1, Lon: 0}.Valid())
	assert.False(t, Location{Lat: 0, Lon: 181}.Valid())
	assert.False(t, Location{Lat: math.NaN(), Lon: 0}.Valid())
}

func TestProfileUpdate(t *testing.T) {
	name := "Sam"
	age := 31
	pet := true
	tags := []string{"Curious", "curious", "Dreamy"}

	t.Run("Merge keeps unspecified fields", func(t *testing.T) {
		p := Profile{UserID: "u1", Name: "Old", Bio: "keeps", Tags: []string{"Calm"}, Location: &Location{Lat: 1, Lon: 2}}
		ProfileUpdate{Name: &name, Age: &age, PetFriendly: &pet, Tags: &tags}.Apply(&p)

		assert.Equal(t, "Sam", p.Name)
		assert.Equal(t, "keeps", p.Bio)
		assert.Equal(t, 31, p.Age)
		assert.True(t, p.PetFriendly)
		assert.Equal(t, []string{"Curious", "Dreamy"}, p.Tags)
		require.NotNil(t, p.Location)
		assert.Equal(t, 1.0, p.Location.Lat)
	})

	t.Run("Location can be cleared", func(t *testing.T) {
		p := Profile{UserID: "u1", Location: &Location{Lat: 1, Lon: 2}}
		ProfileUpdate{ClearLocation: true}.Apply(&p)
		assert.Nil(t, p.Location)
	})

	t.Run("Validate", func(t *testing.T) {
		bad := 200
		g := Gender("Robot")
		assert.ErrorIs(t, ProfileUpdate{Age: &bad}.Validate(), ErrInvalidProfile)
		assert.ErrorIs(t, ProfileUpdate{Gender: &g}.Validate(), ErrInvalidProfile)
		assert.ErrorIs(t, ProfileUpdate{Location: &Location{Lat: 91}}.Validate(), ErrInvalidProfile)
		assert.NoError(t, ProfileUpdate{Age: &age, Name: &name}.Validate())
	})
}

func TestPlaceholderImage(t *testing.T) {
	decode := func(uri string) string {
		t.Helper()
		require.True(t, strings.HasPrefix(uri, "data:image/svg+xml,"))
		raw, err := url.PathUnescape(strings.TrimPrefix(uri, "data:image/svg+xml,"))
		require.NoError(t, err)
		return raw
	}

	assert.Contains(t, decode(PlaceholderImage("robin")), ">R</text>")
	assert.Contains(t, decode(PlaceholderImage("  élodie")), ">É</text>")
	assert.Contains(t, decode(PlaceholderImage("")), ">V</text>")
	assert.Contains(t, decode(PlaceholderImage("<script>")), ">V</text>")
	assert.Equal(t, PlaceholderImage("Robin"), PlaceholderImage("robin"))
}
