// Package gradebook reads the local grade table that is synchronized to
// Canvas.
//
// A grade table is a CSV file with a header row. One column holds the score
// to post; the subject is either given directly as a Canvas user id or as a
// login (usually an email address) that is resolved against the course
// roster with ResolveSubjects.
package gradebook

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/Sternrassler/canvas-sync/pkg/gradesync"
)

// CSVOptions names the columns of a grade table. Exactly one of
// SubjectColumn and LoginColumn must be set.
type CSVOptions struct {
	SubjectColumn string
	LoginColumn   string
	ScoreColumn   string

	// Comma defaults to ','.
	Comma rune
}

// Row is one grade table entry.
type Row struct {
	// Line is the 1-based line number in the source, header included.
	Line      int
	Login     string
	SubjectID int64
	// Resolved reports whether SubjectID is set.
	Resolved bool
	Score    float64
}

// Table is an ordered grade table.
type Table struct {
	Rows []Row
}

// LoginResolver maps a login to a Canvas user id.
// *cache.Collection holding a roster satisfies it.
type LoginResolver interface {
	FindSubjectByLogin(login string) (int64, error)
}

// ReadCSV reads a grade table. Rows keep their file order.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	if opts.ScoreColumn == "" {
		return nil, fmt.Errorf("%w: score column is required", errs.ErrInvalidArgument)
	}
	if (opts.SubjectColumn == "") == (opts.LoginColumn == "") {
		return nil, fmt.Errorf("%w: exactly one of subject column and login column must be set", errs.ErrInvalidArgument)
	}

	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: grade table is empty", errs.ErrParse)
		}
		return nil, fmt.Errorf("%w: grade table header: %v", errs.ErrParse, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[strings.TrimSpace(name)] = i
	}

	column := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("%w: grade table has no column %q", errs.ErrNotFound, name)
		}
		return i, nil
	}

	scoreCol, err := column(opts.ScoreColumn)
	if err != nil {
		return nil, err
	}
	keyName := opts.SubjectColumn
	if keyName == "" {
		keyName = opts.LoginColumn
	}
	keyCol, err := column(keyName)
	if err != nil {
		return nil, err
	}

	table := &Table{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: grade table: %v", errs.ErrParse, err)
		}
		line, _ := reader.FieldPos(0)

		key := strings.TrimSpace(record[keyCol])
		rawScore := strings.TrimSpace(record[scoreCol])

		score, err := strconv.ParseFloat(rawScore, 64)
		if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("%w: line %d: %s=%q is not a finite number", errs.ErrParse, line, opts.ScoreColumn, rawScore)
		}

		row := Row{Line: line, Score: score}
		if opts.SubjectColumn != "" {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s=%q is not a user id", errs.ErrParse, line, opts.SubjectColumn, key)
			}
			row.SubjectID = id
			row.Resolved = true
		} else {
			if key == "" {
				return nil, fmt.Errorf("%w: line %d: %s is empty", errs.ErrParse, line, opts.LoginColumn)
			}
			row.Login = key
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// ResolveSubjects fills SubjectID of every row from its login. It stops at
// the first login that is unknown or ambiguous.
func (t *Table) ResolveSubjects(roster LoginResolver) error {
	for i := range t.Rows {
		row := &t.Rows[i]
		if row.Resolved {
			continue
		}
		id, err := roster.FindSubjectByLogin(row.Login)
		if err != nil {
			return fmt.Errorf("line %d: %w", row.Line, err)
		}
		row.SubjectID = id
		row.Resolved = true
	}
	return nil
}

// GradeRows returns the table as reconciler input. Every row must be
// resolved.
func (t *Table) GradeRows() ([]gradesync.GradeRow, error) {
	rows := make([]gradesync.GradeRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		if !row.Resolved {
			return nil, fmt.Errorf("%w: line %d: login %s is not resolved to a user id", errs.ErrInvalidArgument, row.Line, row.Login)
		}
		rows = append(rows, gradesync.GradeRow{SubjectID: row.SubjectID, Score: row.Score})
	}
	return rows, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}
