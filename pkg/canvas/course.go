package canvas

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/canvas-sync/pkg/cache"
	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/rs/zerolog"
)

// RosterQuery filters the users of a course. Zero values are omitted.
// See https://canvas.instructure.com/doc/api/courses.html#method.courses.users
type RosterQuery struct {
	SearchTerm       string
	Sort             string
	EnrollmentTypes  []string
	Include          []string
	UserID           string
	UserIDs          []int64
	EnrollmentStates []string
	IncludeInactive  bool
}

func (q RosterQuery) values() url.Values {
	v := url.Values{}
	if q.SearchTerm != "" {
		v.Set("search_term", q.SearchTerm)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	for _, t := range q.EnrollmentTypes {
		v.Add("enrollment_type[]", t)
	}
	for _, inc := range q.Include {
		v.Add("include[]", inc)
	}
	if q.UserID != "" {
		v.Set("user_id", q.UserID)
	}
	for _, id := range q.UserIDs {
		v.Add("user_ids[]", strconv.FormatInt(id, 10))
	}
	for _, s := range q.EnrollmentStates {
		v.Add("enrollment_state[]", s)
	}
	if q.IncludeInactive {
		v.Set("include_inactive", "true")
	}
	return v
}

// Course is a handle for one Canvas course.
type Course struct {
	session   *Session
	dashboard *Dashboard
	id        int64
	logger    zerolog.Logger
}

// ID returns the course id.
func (c *Course) ID() int64 {
	return c.id
}

func (c *Course) String() string {
	return fmt.Sprintf("Course(cid=%d)", c.id)
}

const (
	rosterRoute      = "/api/v1/courses/:course_id/users"
	submissionsRoute = "/api/v1/courses/:course_id/assignments/:id/submissions"
)

func (c *Course) usersPath() string {
	return fmt.Sprintf("/api/v1/courses/%d/users", c.id)
}

// RosterPage fetches a single page of the course users.
func (c *Course) RosterPage(ctx context.Context, q RosterQuery, page, perPage int) ([]cache.Record, error) {
	records, err := c.session.getPage(ctx, c.usersPath(), q.values(), page, perPage)
	if err != nil {
		return nil, fmt.Errorf("get roster of course %d: %w", c.id, err)
	}
	return records, nil
}

// Roster fetches all users of the course. A non-empty snapshot location is
// loaded when usable and written after a live fetch otherwise.
func (c *Course) Roster(ctx context.Context, q RosterQuery, snapshot string) (*cache.Collection, error) {
	roster, err := c.session.fetchCollection(ctx, rosterRoute, snapshot, func(ctx context.Context, page, perPage int) ([]cache.Record, error) {
		return c.RosterPage(ctx, q, page, perPage)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("records", roster.Len()).Msg("Loaded roster")
	return roster, nil
}

// RosterKey identifies the roster snapshot for q.
func (c *Course) RosterKey(q RosterQuery) cache.SnapshotKey {
	return cache.SnapshotKey{CourseID: c.id, Resource: "users", QueryParams: q.values()}
}

// OpenAssignment returns a handle for assignment id. No request is made.
func (c *Course) OpenAssignment(id int64) (*Assignment, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: assignment id is required", errs.ErrInvalidArgument)
	}
	return &Assignment{
		session: c.session,
		course:  c,
		id:      id,
		logger:  c.logger.With().Int64("assignment_id", id).Logger(),
	}, nil
}
