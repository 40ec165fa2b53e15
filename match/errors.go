package match

import "errors"

var (
	// ErrStoreUnavailable marks a failed or cancelled profile store read.
	// It is returned alongside an empty result so callers can tell
	// "couldn't check" apart from "no one matched".
	ErrStoreUnavailable = errors.New("profile store unavailable")
	// ErrInvalidFilters is returned by Filters.Validate.
	ErrInvalidFilters = errors.New("invalid filters")
	// ErrInvalidProfile is returned by ProfileUpdate.Validate.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrProfileNotFound is returned by stores for unknown user IDs.
	ErrProfileNotFound = errors.New("profile not found")
)
