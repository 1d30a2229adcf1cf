package canvas

import (
	"context"
	"fmt"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
)

// Dashboard is the entry point for a user's courses.
type Dashboard struct {
	session *Session
	userID  int64
}

// Dashboard opens the dashboard of userID. A zero userID resolves the
// authenticated user from the self profile.
func (s *Session) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	if userID == 0 {
		profile, err := s.GetSelfProfile(ctx)
		if err != nil {
			return nil, err
		}
		id, ok := profile.Int("id")
		if !ok {
			return nil, fmt.Errorf("%w: self profile has no numeric id", errs.ErrParse)
		}
		userID = id

		s.logger.Debug().Int64("user_id", userID).Msg("Resolved self profile")
	}
	return &Dashboard{session: s, userID: userID}, nil
}

// UserID returns the dashboard owner's user id.
func (d *Dashboard) UserID() int64 {
	return d.userID
}

func (d *Dashboard) String() string {
	return fmt.Sprintf("Dashboard(uid=%d)", d.userID)
}

// OpenCourse returns a handle for course id. No request is made.
func (d *Dashboard) OpenCourse(id int64) (*Course, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: course id is required", errs.ErrInvalidArgument)
	}
	return &Course{
		session:   d.session,
		dashboard: d,
		id:        id,
		logger:    d.session.logger.With().Int64("course_id", id).Logger(),
	}, nil
}
