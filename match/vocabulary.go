package match

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Vibes is the fixed vocabulary of interest descriptors used for matching.
var Vibes = []string{
	"Chill", "Energetic", "Creative", "Analytical", "Adventurous", "Calm",
	"Passionate", "Curious", "Spontaneous", "Thoughtful", "Optimistic",
	"Playful", "Grounded", "Dreamy", "Focused",
}

// Moods is the display-only vocabulary.
var Moods = []string{
	"Happy", "Relaxed", "Excited", "Reflective", "Motivated", "Peaceful",
	"Inspired", "Content", "Joyful", "Calm", "Hopeful", "Amused",
	"Enthusiastic", "Serene", "Vibrant",
}

var (
	vibeSet = canonicalSet(Vibes)
	moodSet = canonicalSet(Moods)
)

// lower-cased term -> canonical spelling
func canonicalSet(words []string) map[string]string {
	m := make(map[string]string, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = w
	}
	return m
}

func normalizeVocabulary(in []string, vocab map[string]string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		canon, ok := vocab[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			continue
		}
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		out = append(out, canon)
	}
	return out
}

// NormalizeTags canonicalizes a caller-supplied vibe list. Unknown and
// duplicate entries are dropped.
func NormalizeTags(tags []string) []string {
	return normalizeVocabulary(tags, vibeSet)
}

const placeholderSVG = `<svg xmlns='http://www.w3.org/2000/svg' width='150' height='150' viewBox='0 0 150 150'>` +
	`<rect width='100%%' height='100%%' fill='#A970FF'/>` +
	`<text x='50%%' y='50%%' dominant-baseline='middle' text-anchor='middle' font-family='Arial, sans-serif' font-size='80' fill='#FFFFFF'>%s</text></svg>`

// PlaceholderInitial is the letter drawn for a profile without a usable name.
const PlaceholderInitial = "V"

// PlaceholderSVG renders the avatar drawn for profiles without an image.
func PlaceholderSVG(name string) string {
	return fmt.Sprintf(placeholderSVG, placeholderLetter(name))
}

// PlaceholderImage returns PlaceholderSVG as a data URI.
func PlaceholderImage(name string) string {
	return "data:image/svg+xml," + url.PathEscape(PlaceholderSVG(name))
}

func placeholderLetter(name string) string {
	name = strings.TrimSpace(name)
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || !unicode.IsPrint(r) {
		return PlaceholderInitial
	}
	switch r {
	case '<', '>', '&', '\'', '"':
		return PlaceholderInitial
	}
	return string(unicode.ToUpper(r))
}
