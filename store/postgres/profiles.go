package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/lib/pq"
)

// profileColumns keeps SELECT and RETURNING scans in the same order.
const profileColumns = `
user_id, name, bio, tags, moods, age, gender, schedule, pet_friendly,
location_lat, location_lon, is_deactivated, image_url
`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanProfile reads one row and normalizes it so the engine never sees
// half-set locations or off-vocabulary tags.
func scanProfile(row rowScanner) (*match.Profile, error) {
	var p match.Profile
	var gender, schedule string
	var lat, lon sql.NullFloat64

	if err := row.Scan(
		&p.UserID,
		&p.Name,
		&p.Bio,
		pq.Array(&p.Tags),
		pq.Array(&p.Moods),
		&p.Age,
		&gender,
		&schedule,
		&p.PetFriendly,
		&lat,
		&lon,
		&p.IsDeactivated,
		&p.ImageURL,
	); err != nil {
		return nil, err
	}

	p.Gender = match.Gender(gender)
	p.Schedule = match.Schedule(schedule)
	if lat.Valid && lon.Valid {
		p.Location = &match.Location{Lat: lat.Float64, Lon: lon.Float64}
	}
	p.Normalize()

	return &p, nil
}

func scanProfiles(rows *sql.Rows) ([]match.Profile, error) {
	defer rows.Close()

	var out []match.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FindProfilesByAnyTag uses the array overlap operator so the GIN index on
// tags does the narrowing.
func (s *Store) FindProfilesByAnyTag(ctx context.Context, tags []string) ([]match.Profile, error) {
	const op = "store/postgres/profiles/FindProfilesByAnyTag"

	if len(tags) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE namespace = $1 AND tags && $2::text[]
	`, s.namespace, pq.Array(tags))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return profiles, nil
}

// GetProfile returns match.ErrProfileNotFound for unknown users.
func (s *Store) GetProfile(ctx context.Context, userID string) (*match.Profile, error) {
	const op = "store/postgres/profiles/GetProfile"

	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE namespace = $1 AND user_id = $2
	`, s.namespace, userID)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, match.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// GetProfiles loads several profiles at once. Unknown IDs are absent from the
// result; order is unspecified.
func (s *Store) GetProfiles(ctx context.Context, userIDs []string) ([]match.Profile, error) {
	const op = "store/postgres/profiles/GetProfiles"

	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE namespace = $1 AND user_id = ANY($2::text[])
	`, s.namespace, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return profiles, nil
}

// SaveProfile merges update into the stored row under a row lock. A missing
// profile is inserted empty first so concurrent first writes queue on the
// same lock instead of overwriting each other.
func (s *Store) SaveProfile(ctx context.Context, userID string, update match.ProfileUpdate) (*match.Profile, error) {
	const op = "store/postgres/profiles/SaveProfile"

	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, match.ErrInvalidProfile)
	}

	var saved *match.Profile
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (namespace, user_id)
			VALUES ($1, $2)
			ON CONFLICT (namespace, user_id) DO NOTHING
		`, s.namespace, userID); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, `
			SELECT `+profileColumns+`
			FROM profiles
			WHERE namespace = $1 AND user_id = $2
			FOR UPDATE
		`, s.namespace, userID)

		current, err := scanProfile(row)
		if err != nil {
			return err
		}

		update.Apply(current)
		current.UserID = userID

		var lat, lon sql.NullFloat64
		if current.Location != nil {
			lat = sql.NullFloat64{Float64: current.Location.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: current.Location.Lon, Valid: true}
		}

		row = tx.QueryRowContext(ctx, `
			UPDATE profiles SET
				name = $3,
				bio = $4,
				tags = $5,
				moods = $6,
				age = $7,
				gender = $8,
				schedule = $9,
				pet_friendly = $10,
				location_lat = $11,
				location_lon = $12,
				is_deactivated = $13,
				image_url = $14,
				updated_at = now()
			WHERE namespace = $1 AND user_id = $2
			RETURNING `+profileColumns,
			s.namespace, userID, current.Name, current.Bio,
			pq.Array(current.Tags), pq.Array(current.Moods),
			current.Age, string(current.Gender), string(current.Schedule),
			current.PetFriendly, lat, lon, current.IsDeactivated, current.ImageURL,
		)

		saved, err = scanProfile(row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// SaveFilters stores the user's preferred filters.
func (s *Store) SaveFilters(ctx context.Context, userID string, f match.Filters) error {
	const op = "store/postgres/profiles/SaveFilters"

	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_filters (namespace, user_id, filters)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, user_id) DO UPDATE SET
			filters = EXCLUDED.filters,
			updated_at = now()
	`, s.namespace, userID, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LoadFilters returns match.ErrProfileNotFound when nothing was saved.
func (s *Store) LoadFilters(ctx context.Context, userID string) (*match.Filters, error) {
	const op = "store/postgres/profiles/LoadFilters"

	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT filters FROM match_filters WHERE namespace = $1 AND user_id = $2
	`, s.namespace, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, match.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f := match.DefaultFilters()
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &f, nil
}
