package canvas

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/canvas-sync/pkg/cache"
	"github.com/Sternrassler/canvas-sync/pkg/gradesync"
	"github.com/rs/zerolog"
)

// SubmissionsQuery selects the submissions of an assignment.
// See https://canvas.instructure.com/doc/api/submissions.html#method.submissions_api.index
type SubmissionsQuery struct {
	Include []string
	// Grouped returns submissions grouped by student. The records then no
	// longer carry user_id and score at the top level.
	Grouped bool
}

func (q SubmissionsQuery) values() url.Values {
	v := url.Values{}
	for _, inc := range q.Include {
		v.Add("include[]", inc)
	}
	if q.Grouped {
		v.Set("grouped", "true")
	}
	return v
}

// GradeParams are the optional fields of a grade update. Zero values are
// omitted.
// See https://canvas.instructure.com/doc/api/submissions.html#method.submissions_api.update
type GradeParams struct {
	PostedGrade         string
	Comment             string
	Attempt             int
	Visibility          string
	Excuse              *bool
	LatePolicyStatus    string
	SecondsLateOverride *int
}

func (p GradeParams) values() url.Values {
	v := url.Values{}
	if p.PostedGrade != "" {
		v.Set("submission[posted_grade]", p.PostedGrade)
	}
	if p.Comment != "" {
		v.Set("comment[text_comment]", p.Comment)
	}
	if p.Attempt != 0 {
		v.Set("comment[attempt]", strconv.Itoa(p.Attempt))
	}
	if p.Visibility != "" {
		v.Set("include[visibility]", p.Visibility)
	}
	if p.Excuse != nil {
		v.Set("submission[excuse]", strconv.FormatBool(*p.Excuse))
	}
	if p.LatePolicyStatus != "" {
		v.Set("submission[late_policy_status]", p.LatePolicyStatus)
	}
	if p.SecondsLateOverride != nil {
		v.Set("submission[seconds_late_override]", strconv.Itoa(*p.SecondsLateOverride))
	}
	return v
}

// Assignment is a handle for one assignment of a course.
type Assignment struct {
	session *Session
	course  *Course
	id      int64
	logger  zerolog.Logger
}

// ID returns the assignment id.
func (a *Assignment) ID() int64 {
	return a.id
}

// Course returns the course the assignment belongs to.
func (a *Assignment) Course() *Course {
	return a.course
}

func (a *Assignment) String() string {
	return fmt.Sprintf("Assignment(cid=%d, aid=%d)", a.course.id, a.id)
}

// SubmissionsKey identifies the submissions snapshot for q.
func (a *Assignment) SubmissionsKey(q SubmissionsQuery) cache.SnapshotKey {
	return cache.SnapshotKey{
		CourseID:     a.course.id,
		AssignmentID: a.id,
		Resource:     "submissions",
		QueryParams:  q.values(),
	}
}

func (a *Assignment) submissionsPath() string {
	return fmt.Sprintf("/api/v1/courses/%d/assignments/%d/submissions", a.course.id, a.id)
}

// SubmissionsPage fetches a single page of submissions.
func (a *Assignment) SubmissionsPage(ctx context.Context, q SubmissionsQuery, page, perPage int) ([]cache.Record, error) {
	records, err := a.session.getPage(ctx, a.submissionsPath(), q.values(), page, perPage)
	if err != nil {
		return nil, fmt.Errorf("get submissions of assignment %d: %w", a.id, err)
	}
	return records, nil
}

// Submissions fetches all submissions. A non-empty snapshot location is
// loaded when usable and written after a live fetch otherwise.
func (a *Assignment) Submissions(ctx context.Context, q SubmissionsQuery, snapshot string) (*cache.Collection, error) {
	subs, err := a.session.fetchCollection(ctx, submissionsRoute, snapshot, func(ctx context.Context, page, perPage int) ([]cache.Record, error) {
		return a.SubmissionsPage(ctx, q, page, perPage)
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug().Int("records", subs.Len()).Msg("Loaded submissions")
	return subs, nil
}

// GradeSubmission updates the submission of userID.
func (a *Assignment) GradeSubmission(ctx context.Context, userID int64, p GradeParams) error {
	path := fmt.Sprintf("%s/%d", a.submissionsPath(), userID)
	if err := a.session.client.Put(ctx, path, p.values()); err != nil {
		return fmt.Errorf("grade submission of user %d: %w", userID, err)
	}
	return nil
}

// PostScore posts score as the grade of userID.
func (a *Assignment) PostScore(ctx context.Context, userID int64, score float64) error {
	return a.GradeSubmission(ctx, userID, GradeParams{
		PostedGrade: strconv.FormatFloat(score, 'f', -1, 64),
	})
}

// SyncOptions configures SyncGrades.
type SyncOptions struct {
	Query SubmissionsQuery
	// Snapshot is the submissions snapshot location; empty disables it.
	Snapshot  string
	Reconcile gradesync.Config
}

// SyncGrades brings the assignment's scores in line with rows and returns one
// action per row in table order.
func (a *Assignment) SyncGrades(ctx context.Context, rows []gradesync.GradeRow, opts SyncOptions) ([]gradesync.UpdateAction, error) {
	subs, err := a.Submissions(ctx, opts.Query, opts.Snapshot)
	if err != nil {
		return nil, err
	}

	r, err := gradesync.NewReconciler(a, opts.Reconcile, a.logger)
	if err != nil {
		return nil, err
	}
	return r.Reconcile(ctx, subs, rows)
}
