package main

import (
	"context"
	"log/slog"

	"gitea.kood.tech/petrkubec/vibetribe/backend/avatar"
	"gitea.kood.tech/petrkubec/vibetribe/backend/events"
	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
)

// invalidator drops cached match results.
type invalidator interface {
	Invalidate(ctx context.Context) error
}

// App carries the collaborators every handler needs.
type App struct {
	namespace string
	jwtSecret []byte
	defaults  match.Filters

	store   match.ProfileStore
	matcher match.Matcher
	cache   invalidator
	avatars avatar.Resolver
	events  events.Publisher
	hub     *Hub
	metrics *Metrics
	log     *slog.Logger
}

// profileChanged is the single reaction to a profile write, whether it came
// from this instance or from the event bus.
func (a *App) profileChanged(ctx context.Context, ev events.ProfileEvent) error {
	if a.cache != nil {
		if err := a.cache.Invalidate(ctx); err != nil {
			return err
		}
	}
	a.hub.broadcast(FeedEvent{Type: feedStale, Data: map[string]string{"user_id": ev.UserID}})
	return nil
}

// announceProfileChange publishes the change, or handles it locally when no
// broker is configured. A failed publish still invalidates locally.
func (a *App) announceProfileChange(ctx context.Context, userID string) {
	ev := events.NewProfileUpdated(a.namespace, userID)

	if a.events != nil && a.events.Enabled() {
		err := a.events.PublishProfileEvent(ctx, ev)
		if err == nil {
			return
		}
		a.log.Warn("event_publish_failed", slog.String("user_id", userID), slog.String("err", err.Error()))
	}

	if err := a.profileChanged(ctx, ev); err != nil {
		a.log.Warn("cache_invalidate_failed", slog.String("err", err.Error()))
	}
}
