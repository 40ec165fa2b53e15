package main

import (
	"context"
	"errors"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"github.com/graph-gophers/dataloader/v7"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

// DataLoaders holds the per-request loaders.
type DataLoaders struct {
	ProfileLoader *dataloader.Loader[string, *match.Profile]
}

// NewDataLoaders creates loaders backed by the profile store.
func NewDataLoaders(store match.ProfileStore) *DataLoaders {
	return &DataLoaders{
		ProfileLoader: dataloader.NewBatchedLoader(
			profileBatchFn(store),
			dataloader.WithWait[string, *match.Profile](2*time.Millisecond),
		),
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// profileBatchFn loads every requested key in one GetProfiles call. Keys the
// store doesn't know resolve to match.ErrProfileNotFound.
func profileBatchFn(store match.ProfileStore) dataloader.BatchFunc[string, *match.Profile] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*match.Profile] {
		results := make([]*dataloader.Result[*match.Profile], len(keys))

		profiles, err := store.GetProfiles(ctx, keys)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[*match.Profile]{Error: err}
			}
			return results
		}

		byID := make(map[string]*match.Profile, len(profiles))
		for i := range profiles {
			byID[profiles[i].UserID] = &profiles[i]
		}

		for i, key := range keys {
			if p, ok := byID[key]; ok {
				results[i] = &dataloader.Result[*match.Profile]{Data: p}
			} else {
				results[i] = &dataloader.Result[*match.Profile]{Error: match.ErrProfileNotFound}
			}
		}
		return results
	}
}

// loadProfile goes through the request's loader.
func loadProfile(ctx context.Context, id string) (*match.Profile, error) {
	dl := GetDataLoadersFromContext(ctx)
	if dl == nil {
		return nil, errNoLoaders
	}
	return dl.ProfileLoader.Load(ctx, id)()
}

// loadProfiles returns the found profiles in request order and skips
// unknown IDs. Any other error fails the whole call.
func loadProfiles(ctx context.Context, ids []string) ([]*match.Profile, error) {
	dl := GetDataLoadersFromContext(ctx)
	if dl == nil {
		return nil, errNoLoaders
	}

	thunks := make([]dataloader.Thunk[*match.Profile], len(ids))
	for i, id := range ids {
		thunks[i] = dl.ProfileLoader.Load(ctx, id)
	}

	out := make([]*match.Profile, 0, len(ids))
	for _, thunk := range thunks {
		p, err := thunk()
		if err != nil {
			if errors.Is(err, match.ErrProfileNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

var errNoLoaders = errors.New("dataloaders missing from request context")
