package main

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/canvas-sync/pkg/cache"
	"github.com/Sternrassler/canvas-sync/pkg/canvas"
	"github.com/spf13/cobra"
)

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the profile of the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := a.session.GetSelfProfile(cmd.Context())
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(profile, "", "\t")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newRosterCmd(a *app) *cobra.Command {
	var (
		courseID int64
		snapshot string
		auto     bool
		query    canvas.RosterQuery
	)

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Fetch the users of a course, optionally into a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			course, err := a.openCourse(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			if auto {
				snapshot = a.snapshotLocation(course.RosterKey(query))
			}
			roster, err := course.Roster(cmd.Context(), query, snapshot)
			if err != nil {
				return err
			}
			return printCollection(cmd, "users", roster)
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "course id")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot location to load from or save to")
	cmd.Flags().BoolVar(&auto, "auto-snapshot", false, "derive the snapshot location from the course and query")
	cmd.MarkFlagsMutuallyExclusive("snapshot", "auto-snapshot")
	cmd.Flags().StringVar(&query.SearchTerm, "search", "", "partial name or full id to match")
	cmd.Flags().StringSliceVar(&query.EnrollmentTypes, "enrollment-type", nil, "enrollment types to include (student, teacher, ta, observer, designer)")
	cmd.Flags().StringSliceVar(&query.Include, "include", nil, "additional user fields (email, enrollments, ...)")
	cmd.Flags().StringSliceVar(&query.EnrollmentStates, "enrollment-state", nil, "enrollment states to include")
	cmd.Flags().BoolVar(&query.IncludeInactive, "include-inactive", false, "include inactive enrollments")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func newSubmissionsCmd(a *app) *cobra.Command {
	var (
		courseID     int64
		assignmentID int64
		snapshot     string
		auto         bool
		query        canvas.SubmissionsQuery
	)

	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "Fetch the submissions of an assignment, optionally into a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			course, err := a.openCourse(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			assignment, err := course.OpenAssignment(assignmentID)
			if err != nil {
				return err
			}
			if auto {
				snapshot = a.snapshotLocation(assignment.SubmissionsKey(query))
			}
			subs, err := assignment.Submissions(cmd.Context(), query, snapshot)
			if err != nil {
				return err
			}
			return printCollection(cmd, "submissions", subs)
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "course id")
	cmd.Flags().Int64Var(&assignmentID, "assignment", 0, "assignment id")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot location to load from or save to")
	cmd.Flags().BoolVar(&auto, "auto-snapshot", false, "derive the snapshot location from the course, assignment and query")
	cmd.MarkFlagsMutuallyExclusive("snapshot", "auto-snapshot")
	cmd.Flags().StringSliceVar(&query.Include, "include", nil, "associations to include (submission_history, user, ...)")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

func newForgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forget LOCATION...",
		Short: "Delete snapshots so the next run fetches live data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, location := range args {
				if err := a.session.ForgetSnapshot(cmd.Context(), location); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", location)
			}
			return nil
		},
	}
}

// printCollection writes the records to stdout unless they went to a
// snapshot, in which case only a summary is printed.
func printCollection(cmd *cobra.Command, noun string, c *cache.Collection) error {
	out := cmd.OutOrStdout()
	if c.Location() != "" {
		source := "fetched"
		if c.FromSnapshot() {
			source = "loaded"
		}
		fmt.Fprintf(out, "%d %s %s (%s)\n", c.Len(), noun, source, c.Location())
		return nil
	}

	data, err := cache.Encode(c.Records())
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
