// Package mongo implements match.ProfileStore on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	profilesCollection = "profiles"
	filtersCollection  = "match_filters"
)

type profileDoc struct {
	Namespace     string `bson:"namespace"`
	Rev           int64  `bson:"rev"`
	match.Profile `bson:",inline"`
}

// saveAttempts bounds the compare-and-swap loop in SaveProfile.
const saveAttempts = 8

var errWriteConflict = errors.New("profile changed concurrently")

type filtersDoc struct {
	Namespace string        `bson:"namespace"`
	UserID    string        `bson:"user_id"`
	Filters   match.Filters `bson:"filters"`
}

// Store keeps profiles of one namespace.
type Store struct {
	client    *mongo.Client
	profiles  *mongo.Collection
	filters   *mongo.Collection
	namespace string
}

// Connect dials uri and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	const op = "store/mongo/Connect"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// New opens the collections in database and makes sure the indexes exist.
func New(ctx context.Context, client *mongo.Client, database, namespace string) (*Store, error) {
	const op = "store/mongo/New"

	if client == nil || database == "" || namespace == "" {
		return nil, fmt.Errorf("%s: client, database and namespace are required", op)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		profiles:  db.Collection(profilesCollection),
		filters:   db.Collection(filtersCollection),
		namespace: namespace,
	}

	_, err := s.profiles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "namespace", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "namespace", Value: 1}, {Key: "tags", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.filters.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "namespace", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) findMany(ctx context.Context, filter bson.M) ([]match.Profile, error) {
	cursor, err := s.profiles.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []profileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]match.Profile, 0, len(docs))
	for _, d := range docs {
		p := d.Profile
		p.Normalize()
		out = append(out, p)
	}
	return out, nil
}

// FindProfilesByAnyTag matches documents whose tags array shares an element
// with tags.
func (s *Store) FindProfilesByAnyTag(ctx context.Context, tags []string) ([]match.Profile, error) {
	const op = "store/mongo/FindProfilesByAnyTag"

	if len(tags) == 0 {
		return nil, nil
	}

	out, err := s.findMany(ctx, bson.M{"namespace": s.namespace, "tags": bson.M{"$in": tags}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*match.Profile, error) {
	const op = "store/mongo/GetProfile"

	p, err := s.getProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *Store) getProfile(ctx context.Context, userID string) (*match.Profile, error) {
	doc, err := s.getDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := doc.Profile
	p.Normalize()
	return &p, nil
}

func (s *Store) getDoc(ctx context.Context, userID string) (*profileDoc, error) {
	var doc profileDoc
	err := s.profiles.FindOne(ctx, bson.M{"namespace": s.namespace, "user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, match.ErrProfileNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (s *Store) GetProfiles(ctx context.Context, userIDs []string) ([]match.Profile, error) {
	const op = "store/mongo/GetProfiles"

	if len(userIDs) == 0 {
		return nil, nil
	}

	out, err := s.findMany(ctx, bson.M{"namespace": s.namespace, "user_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// SaveProfile merges update into the stored document. Each write is
// conditioned on the revision it read, so concurrent writers from any process
// retry instead of overwriting each other.
func (s *Store) SaveProfile(ctx context.Context, userID string, update match.ProfileUpdate) (*match.Profile, error) {
	const op = "store/mongo/SaveProfile"

	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, match.ErrInvalidProfile)
	}

	for attempt := 0; attempt < saveAttempts; attempt++ {
		saved, err := s.trySaveProfile(ctx, userID, update)
		if errors.Is(err, errWriteConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return saved, nil
	}
	return nil, fmt.Errorf("%s: %w", op, errWriteConflict)
}

func (s *Store) trySaveProfile(ctx context.Context, userID string, update match.ProfileUpdate) (*match.Profile, error) {
	doc, err := s.getDoc(ctx, userID)
	switch {
	case errors.Is(err, match.ErrProfileNotFound):
		doc = nil
	case err != nil:
		return nil, err
	}

	current := &match.Profile{UserID: userID}
	if doc != nil {
		current = &doc.Profile
		current.Normalize()
	}
	update.Apply(current)
	current.UserID = userID

	if doc == nil {
		_, err := s.profiles.InsertOne(ctx, profileDoc{Namespace: s.namespace, Rev: 1, Profile: *current})
		if mongo.IsDuplicateKeyError(err) {
			return nil, errWriteConflict
		}
		if err != nil {
			return nil, err
		}
		return current, nil
	}

	filter := bson.M{"namespace": s.namespace, "user_id": userID, "rev": doc.Rev}
	if doc.Rev == 0 {
		// documents written before revisions were tracked
		filter["rev"] = bson.M{"$in": bson.A{0, nil}}
	}
	res, err := s.profiles.ReplaceOne(ctx, filter,
		profileDoc{Namespace: s.namespace, Rev: doc.Rev + 1, Profile: *current})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, errWriteConflict
	}
	return current, nil
}

func (s *Store) SaveFilters(ctx context.Context, userID string, f match.Filters) error {
	const op = "store/mongo/SaveFilters"

	_, err := s.filters.ReplaceOne(ctx,
		bson.M{"namespace": s.namespace, "user_id": userID},
		filtersDoc{Namespace: s.namespace, UserID: userID, Filters: f},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) LoadFilters(ctx context.Context, userID string) (*match.Filters, error) {
	const op = "store/mongo/LoadFilters"

	var doc filtersDoc
	err := s.filters.FindOne(ctx, bson.M{"namespace": s.namespace, "user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, match.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &doc.Filters, nil
}

var _ match.ProfileStore = (*Store)(nil)
