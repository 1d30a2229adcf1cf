// Package canvas exposes the Canvas LMS resources used for grade
// synchronization: the current user's dashboard, courses with their roster,
// and assignments with their submissions.
//
// All list endpoints are fetched completely through the paginator and can be
// cached as snapshots:
//
//	session, _ := canvas.NewSession(c, canvas.DefaultConfig(), logger)
//	dash, _ := session.Dashboard(ctx, 0)
//	course, _ := dash.OpenCourse(1234)
//	assignment, _ := course.OpenAssignment(5678)
//	subs, _ := assignment.Submissions(ctx, canvas.SubmissionsQuery{}, "subs.json")
package canvas

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/canvas-sync/pkg/cache"
	"github.com/Sternrassler/canvas-sync/pkg/client"
	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/Sternrassler/canvas-sync/pkg/pagination"
	"github.com/rs/zerolog"
)

// Config holds session configuration.
type Config struct {
	// Pagination controls page size and the delay between page requests.
	Pagination pagination.Config

	// Store persists snapshots; nil selects cache.FileStore.
	Store cache.SnapshotStore
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Pagination: pagination.DefaultConfig(),
	}
}

// Session binds a Canvas client to snapshot storage and pagination settings.
type Session struct {
	client    *client.Client
	store     cache.SnapshotStore
	paginator *pagination.Paginator[cache.Record]
	logger    zerolog.Logger
}

// NewSession creates a session on top of c.
func NewSession(c *client.Client, cfg Config, logger zerolog.Logger) (*Session, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: client is required", errs.ErrInvalidArgument)
	}

	store := cfg.Store
	if store == nil {
		store = cache.FileStore{}
	}

	return &Session{
		client:    c,
		store:     store,
		paginator: pagination.New[cache.Record](cfg.Pagination, logger),
		logger:    logger,
	}, nil
}

// Client returns the underlying Canvas client.
func (s *Session) Client() *client.Client {
	return s.client
}

// ForgetSnapshot deletes the snapshot at location from the session store.
func (s *Session) ForgetSnapshot(ctx context.Context, location string) error {
	if err := cache.Remove(ctx, s.store, location); err != nil {
		return err
	}
	s.logger.Info().
		Str("snapshot", location).
		Str("store", s.store.Name()).
		Msg("Snapshot deleted")
	return nil
}

// GetSelfProfile returns the profile of the authenticated user.
func (s *Session) GetSelfProfile(ctx context.Context) (cache.Record, error) {
	var profile cache.Record
	if err := s.client.GetJSON(ctx, "/api/v1/users/self", nil, &profile); err != nil {
		return nil, fmt.Errorf("get self profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: self profile is not an object", errs.ErrParse)
	}
	return profile, nil
}

// fetchCollection paginates into a Collection, reusing the snapshot at
// location when one is usable. route labels logs and metrics.
func (s *Session) fetchCollection(ctx context.Context, route, location string, page pagination.PageFunc[cache.Record]) (*cache.Collection, error) {
	return cache.LoadOrFetch(ctx, cache.Options{
		Location: location,
		Store:    s.store,
		Logger:   s.logger.With().Str("endpoint", route).Logger(),
	}, func(ctx context.Context) ([]cache.Record, error) {
		return s.paginator.FetchAll(ctx, route, page)
	})
}

// getPage fetches one page of a list endpoint.
func (s *Session) getPage(ctx context.Context, path string, params url.Values, page, perPage int) ([]cache.Record, error) {
	values := make(url.Values, len(params)+2)
	for k, v := range params {
		values[k] = v
	}
	values.Set("page", strconv.Itoa(page))
	values.Set("per_page", strconv.Itoa(perPage))

	var records []cache.Record
	if err := s.client.GetJSON(ctx, path, values, &records); err != nil {
		return nil, err
	}
	return records, nil
}
