package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Sternrassler/canvas-sync/pkg/canvas"
	"github.com/Sternrassler/canvas-sync/pkg/gradebook"
	"github.com/Sternrassler/canvas-sync/pkg/gradesync"
	"github.com/Sternrassler/canvas-sync/pkg/logging"
	"github.com/Sternrassler/canvas-sync/pkg/metrics"
	"github.com/spf13/cobra"
)

type syncOptions struct {
	courseID            int64
	assignmentID        int64
	gradesFile          string
	scoreColumn         string
	loginColumn         string
	subjectColumn       string
	rosterSnapshot      string
	submissionsSnapshot string
	autoSnapshot        bool
	dryRun              int
	allowDuplicateRows  bool
	metricsAddr         string
}

func newSyncCmd(a *app) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync an assignment's scores with a CSV grade table",
		Long: `Sync compares every row of the grade table with the current Canvas score
and posts the rows that are missing or changed, in table order.

With --dry-run N at most N grades are written; the remaining updates are
only logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.metricsAddr == "" {
				opts.metricsAddr = a.config.MetricsAddr
			}
			return runSync(cmd.Context(), a, cmd.OutOrStdout(), opts, cmd.Flags().Changed("dry-run"))
		},
	}

	cmd.Flags().Int64Var(&opts.courseID, "course", 0, "course id")
	cmd.Flags().Int64Var(&opts.assignmentID, "assignment", 0, "assignment id")
	cmd.Flags().StringVar(&opts.gradesFile, "grades", "", "CSV grade table")
	cmd.Flags().StringVar(&opts.scoreColumn, "score-column", "", "column holding the score to post")
	cmd.Flags().StringVar(&opts.loginColumn, "login-column", "", "column holding the login (email) of each student")
	cmd.Flags().StringVar(&opts.subjectColumn, "subject-column", "", "column holding the Canvas user id of each student")
	cmd.Flags().StringVar(&opts.rosterSnapshot, "roster-snapshot", "", "roster snapshot location")
	cmd.Flags().StringVar(&opts.submissionsSnapshot, "submissions-snapshot", "", "submissions snapshot location")
	cmd.Flags().BoolVar(&opts.autoSnapshot, "auto-snapshot", false, "derive both snapshot locations from the course and assignment")
	cmd.Flags().IntVar(&opts.dryRun, "dry-run", 0, "write at most N grades")
	cmd.Flags().BoolVar(&opts.allowDuplicateRows, "allow-duplicate-rows", false, "post every row even if a student appears more than once")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address during the sync")
	cmd.MarkFlagsMutuallyExclusive("login-column", "subject-column")
	cmd.MarkFlagsOneRequired("login-column", "subject-column")
	cmd.MarkFlagsMutuallyExclusive("auto-snapshot", "roster-snapshot")
	cmd.MarkFlagsMutuallyExclusive("auto-snapshot", "submissions-snapshot")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("assignment")
	_ = cmd.MarkFlagRequired("grades")
	_ = cmd.MarkFlagRequired("score-column")
	return cmd
}

func runSync(ctx context.Context, a *app, out io.Writer, opts syncOptions, dryRun bool) error {
	f, err := os.Open(opts.gradesFile)
	if err != nil {
		return fmt.Errorf("open grade table: %w", err)
	}
	table, err := gradebook.ReadCSV(f, gradebook.CSVOptions{
		SubjectColumn: opts.subjectColumn,
		LoginColumn:   opts.loginColumn,
		ScoreColumn:   opts.scoreColumn,
	})
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", opts.gradesFile, err)
	}

	course, err := a.openCourse(ctx, opts.courseID)
	if err != nil {
		return err
	}
	assignment, err := course.OpenAssignment(opts.assignmentID)
	if err != nil {
		return err
	}

	if opts.autoSnapshot {
		opts.rosterSnapshot = a.snapshotLocation(course.RosterKey(canvas.RosterQuery{}))
		opts.submissionsSnapshot = a.snapshotLocation(assignment.SubmissionsKey(canvas.SubmissionsQuery{}))
	}

	if opts.loginColumn != "" {
		roster, err := course.Roster(ctx, canvas.RosterQuery{}, opts.rosterSnapshot)
		if err != nil {
			return err
		}
		if err := table.ResolveSubjects(roster); err != nil {
			return fmt.Errorf("%s: %w", opts.gradesFile, err)
		}
	}

	rows, err := table.GradeRows()
	if err != nil {
		return err
	}

	logger := logging.ForAssignment(a.logger, opts.courseID, opts.assignmentID)
	logger.Info().
		Int("rows", len(rows)).
		Bool("dry_run", dryRun).
		Int("max_writes", opts.dryRun).
		Msg("Sync started")

	if opts.metricsAddr != "" {
		server, err := metrics.Listen(opts.metricsAddr, logging.NewLogger("metrics"))
		if err != nil {
			return err
		}
		metricsCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- server.Serve(metricsCtx) }()
		defer func() {
			cancel()
			if err := <-done; err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped with error")
			}
		}()
	}

	actions, syncErr := assignment.SyncGrades(ctx, rows, canvas.SyncOptions{
		Snapshot: opts.submissionsSnapshot,
		Reconcile: gradesync.Config{
			DryRun:             dryRun,
			MaxWrites:          opts.dryRun,
			AllowDuplicateRows: opts.allowDuplicateRows,
		},
	})
	printSummary(out, actions, len(rows))
	if syncErr == nil {
		logger.Info().Int("actions", len(actions)).Msg("Sync finished")
	}

	if syncErr != nil && errors.Is(syncErr, context.Canceled) {
		return fmt.Errorf("sync interrupted: %w", syncErr)
	}
	return syncErr
}

func printSummary(out io.Writer, actions []gradesync.UpdateAction, total int) {
	counts := make(map[gradesync.Reason]int)
	written, skipped := 0, 0
	for _, action := range actions {
		counts[action.Reason]++
		switch {
		case action.Written:
			written++
		case action.NeedsWrite():
			skipped++
		}
	}

	fmt.Fprintf(out, "%d/%d rows processed: %d missing, %d changed, %d unchanged\n",
		len(actions), total,
		counts[gradesync.ReasonMissing], counts[gradesync.ReasonChanged], counts[gradesync.ReasonUnchanged])
	fmt.Fprintf(out, "%d grades written, %d not written\n", written, skipped)
}
