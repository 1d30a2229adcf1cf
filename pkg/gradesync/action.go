// Package gradesync reconciles a local grade table with the scores held by
// Canvas and writes the minimal set of updates.
//
// Every row is classified by looking its subject up in a submissions
// collection:
//
//   - missing: no submission for the subject; the score is posted.
//   - changed: the remote score differs (exactly) or is null; the score is posted.
//   - unchanged: nothing to do.
//
// A dry-run limit caps the number of actual writes. Rows past the cap are
// still classified and logged as "would update".
package gradesync

// GradeRow is one entry of the local grade table.
type GradeRow struct {
	SubjectID int64
	Score     float64
}

// Reason classifies a grade row.
type Reason string

// Reasons.
const (
	ReasonMissing   Reason = "missing"
	ReasonChanged   Reason = "changed"
	ReasonUnchanged Reason = "unchanged"
)

// UpdateAction is the outcome of reconciling one row.
type UpdateAction struct {
	SubjectID int64
	// OldScore is the remote score; nil when missing or null remotely.
	OldScore *float64
	NewScore float64
	Reason   Reason
	// Written reports whether the score was posted.
	Written bool
}

// NeedsWrite reports whether the remote score must be updated.
func (a UpdateAction) NeedsWrite() bool {
	return a.Reason != ReasonUnchanged
}
