package gradesync

import (
	"context"
	"fmt"
	"math"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for reconciliation.
var (
	gradeActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvas_grade_actions_total",
		Help: "Total number of reconciled grade rows by reason",
	}, []string{"reason"}) // "missing", "changed", "unchanged"

	gradeWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvas_grade_writes_total",
		Help: "Total number of grade writes by result",
	}, []string{"result"}) // "written", "dry_run", "failed"
)

// ScoreLookup finds the remote score of a subject.
// *cache.Collection satisfies it.
type ScoreLookup interface {
	FindScoreBySubject(id int64) (found bool, score *float64, err error)
}

// Grader posts a score for a subject. *canvas.Assignment satisfies it.
type Grader interface {
	PostScore(ctx context.Context, subjectID int64, score float64) error
}

// Progress is reported once per processed row.
type Progress struct {
	// Percent is the share of rows processed before this one.
	Percent float64
	Row     int
	Total   int
	Action  UpdateAction
}

// ProgressFunc observes reconciliation progress.
type ProgressFunc func(Progress)

// Config holds reconciler configuration.
type Config struct {
	// DryRun limits the number of remote writes to MaxWrites. Rows beyond the
	// limit are recorded but not written. Without DryRun every actionable row
	// is written.
	DryRun    bool
	MaxWrites int

	// AllowDuplicateRows evaluates repeated subjects in the grade table
	// independently instead of rejecting the table.
	AllowDuplicateRows bool

	Progress ProgressFunc
}

// DefaultConfig returns a configuration that writes every update.
func DefaultConfig() Config {
	return Config{}
}

// Reconciler brings remote scores in line with a grade table.
type Reconciler struct {
	grader Grader
	config Config
	logger zerolog.Logger
}

// NewReconciler creates a reconciler posting through grader.
func NewReconciler(grader Grader, config Config, logger zerolog.Logger) (*Reconciler, error) {
	if grader == nil {
		return nil, fmt.Errorf("%w: grader is required", errs.ErrInvalidArgument)
	}
	if config.DryRun && config.MaxWrites < 0 {
		return nil, fmt.Errorf("%w: dry-run limit must be >= 0 (got %d)", errs.ErrInvalidArgument, config.MaxWrites)
	}
	return &Reconciler{
		grader: grader,
		config: config,
		logger: logger,
	}, nil
}

// Plan classifies every row in table order without writing anything.
// Any lookup failure aborts with no actions. A remote score that is null
// counts as changed; scores are compared exactly, so NaN and infinite
// scores are rejected.
func Plan(lookup ScoreLookup, rows []GradeRow, allowDuplicateRows bool) ([]UpdateAction, error) {
	for _, row := range rows {
		if math.IsNaN(row.Score) || math.IsInf(row.Score, 0) {
			return nil, fmt.Errorf("%w: subject %d has non-finite score %v", errs.ErrInvalidArgument, row.SubjectID, row.Score)
		}
	}
	if !allowDuplicateRows {
		if err := checkUnique(rows); err != nil {
			return nil, err
		}
	}

	actions := make([]UpdateAction, 0, len(rows))
	for _, row := range rows {
		found, old, err := lookup.FindScoreBySubject(row.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("lookup subject %d: %w", row.SubjectID, err)
		}

		action := UpdateAction{SubjectID: row.SubjectID, NewScore: row.Score}
		switch {
		case !found:
			action.Reason = ReasonMissing
		case old == nil || *old != row.Score:
			action.Reason = ReasonChanged
			action.OldScore = old
		default:
			action.Reason = ReasonUnchanged
			action.OldScore = old
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func checkUnique(rows []GradeRow) error {
	seen := make(map[int64]int, len(rows))
	for _, row := range rows {
		seen[row.SubjectID]++
	}
	for _, row := range rows {
		if n := seen[row.SubjectID]; n > 1 {
			return fmt.Errorf("grade table: %w", errs.Duplicate("subject", row.SubjectID, n))
		}
	}
	return nil
}

// Reconcile plans all rows and then applies the updates in table order.
//
// Nothing is written if planning fails. A write failure stops the pass at
// that row; the returned actions end with the failed row and earlier writes
// are kept. Cancellation is checked between rows and returns the actions
// processed so far.
func (r *Reconciler) Reconcile(ctx context.Context, lookup ScoreLookup, rows []GradeRow) ([]UpdateAction, error) {
	planned, err := Plan(lookup, rows, r.config.AllowDuplicateRows)
	if err != nil {
		return nil, err
	}

	total := len(planned)
	written := 0
	actions := make([]UpdateAction, 0, total)

	for i, action := range planned {
		if err := ctx.Err(); err != nil {
			return actions, fmt.Errorf("reconciliation cancelled before row %d: %w", i, err)
		}

		percent := float64(i) / float64(total) * 100
		gradeActionsTotal.WithLabelValues(string(action.Reason)).Inc()

		if action.NeedsWrite() {
			if r.config.DryRun && written >= r.config.MaxWrites {
				gradeWritesTotal.WithLabelValues("dry_run").Inc()
				r.logRow(percent, action, "Would update grade")
			} else {
				if err := r.grader.PostScore(ctx, action.SubjectID, action.NewScore); err != nil {
					gradeWritesTotal.WithLabelValues("failed").Inc()
					actions = append(actions, action)
					return actions, fmt.Errorf("post score for subject %d: %w", action.SubjectID, err)
				}
				gradeWritesTotal.WithLabelValues("written").Inc()
				action.Written = true
				written++
				r.logRow(percent, action, "Grade updated")
			}
		} else {
			r.logRow(percent, action, "Grade unchanged")
		}

		actions = append(actions, action)
		if r.config.Progress != nil {
			r.config.Progress(Progress{
				Percent: percent,
				Row:     i,
				Total:   total,
				Action:  action,
			})
		}
	}

	r.logger.Info().
		Int("rows", total).
		Int("written", written).
		Bool("dry_run", r.config.DryRun).
		Msg("Reconciliation complete")

	return actions, nil
}

func (r *Reconciler) logRow(percent float64, action UpdateAction, msg string) {
	event := r.logger.Info().
		Str("progress_pct", fmt.Sprintf("%.1f", percent)).
		Int64("subject", action.SubjectID).
		Str("reason", string(action.Reason)).
		Float64("new_score", action.NewScore)
	if action.OldScore != nil {
		event = event.Float64("old_score", *action.OldScore)
	}
	event.Msg(msg)
}
