package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/rs/zerolog"
)

// Options selects how a Collection is constructed.
//
//   - Records set, Location empty: keep Records as-is.
//   - Records set, Location set: keep Records and persist them to Location.
//   - Records nil, Location set: load from the snapshot at Location.
//   - neither: errs.ErrInvalidArgument.
//
// An empty non-nil Records slice counts as supplied.
type Options struct {
	Records  []Record
	Location string

	// Store defaults to FileStore.
	Store SnapshotStore

	// Fields defaults to DefaultFields; empty names are filled in.
	Fields Fields

	Logger zerolog.Logger
}

// FetchFunc fetches a complete collection from Canvas.
type FetchFunc func(ctx context.Context) ([]Record, error)

// Collection is an immutable snapshot of one Canvas collection, such as all
// submissions of an assignment or the roster of a course.
type Collection struct {
	records      []Record
	fields       Fields
	location     string
	fromSnapshot bool
	logger       zerolog.Logger
}

// New constructs a Collection from records, a snapshot, or both; see Options.
// When records are supplied they are used as-is and never re-read from the
// snapshot.
func New(ctx context.Context, opts Options) (*Collection, error) {
	store := opts.Store
	if store == nil {
		store = FileStore{}
	}

	c := &Collection{
		fields:   opts.Fields.withDefaults(),
		location: opts.Location,
		logger:   opts.Logger,
	}

	switch {
	case opts.Records == nil && opts.Location == "":
		return nil, fmt.Errorf("%w: either records or a snapshot location must be provided", errs.ErrInvalidArgument)

	case opts.Records != nil:
		c.records = append(make([]Record, 0, len(opts.Records)), opts.Records...)
		if opts.Location != "" {
			if err := save(ctx, store, opts.Location, c.records); err != nil {
				return nil, err
			}
			c.logger.Info().
				Str("snapshot", opts.Location).
				Str("store", store.Name()).
				Int("records", len(c.records)).
				Msg("Snapshot saved")
		}

	default:
		records, err := load(ctx, store, opts.Location)
		if err != nil {
			return nil, err
		}
		c.records = records
		c.fromSnapshot = true
		c.logger.Info().
			Str("snapshot", opts.Location).
			Str("store", store.Name()).
			Int("records", len(c.records)).
			Msg("Snapshot loaded")
	}

	c.logger.Debug().Int("records", len(c.records)).Msg("Collection ready")
	return c, nil
}

func save(ctx context.Context, store SnapshotStore, location string, records []Record) error {
	data, err := Encode(records)
	if err != nil {
		SnapshotErrors.WithLabelValues(store.Name(), "save").Inc()
		return err
	}
	if err := store.Save(ctx, location, data); err != nil {
		SnapshotErrors.WithLabelValues(store.Name(), "save").Inc()
		return fmt.Errorf("save snapshot %s: %w", location, err)
	}
	SnapshotSaves.WithLabelValues(store.Name()).Inc()
	SnapshotSize.WithLabelValues(store.Name()).Set(float64(len(data)))
	return nil
}

func load(ctx context.Context, store SnapshotStore, location string) ([]Record, error) {
	data, err := store.Load(ctx, location)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			SnapshotLoads.WithLabelValues(store.Name(), "miss").Inc()
		} else {
			SnapshotErrors.WithLabelValues(store.Name(), "load").Inc()
		}
		return nil, fmt.Errorf("load snapshot %s: %w", location, err)
	}

	records, err := Decode(data)
	if err != nil {
		SnapshotLoads.WithLabelValues(store.Name(), "invalid").Inc()
		return nil, fmt.Errorf("load snapshot %s: %w", location, err)
	}

	SnapshotLoads.WithLabelValues(store.Name(), "hit").Inc()
	SnapshotSize.WithLabelValues(store.Name()).Set(float64(len(data)))
	return records, nil
}

// Remove deletes the snapshot at location so the next LoadOrFetch goes to
// Canvas. A nil store selects FileStore.
func Remove(ctx context.Context, store SnapshotStore, location string) error {
	if location == "" {
		return fmt.Errorf("%w: snapshot location is required", errs.ErrInvalidArgument)
	}
	if store == nil {
		store = FileStore{}
	}
	if err := store.Delete(ctx, location); err != nil {
		SnapshotErrors.WithLabelValues(store.Name(), "delete").Inc()
		return fmt.Errorf("delete snapshot %s: %w", location, err)
	}
	return nil
}

// LoadOrFetch loads the snapshot at opts.Location when one is set and usable.
// If the snapshot is absent (errs.ErrNotFound) or malformed (errs.ErrParse),
// the collection is fetched live and persisted to opts.Location. Any other
// load failure, such as a permission error, is returned.
// opts.Records is ignored.
func LoadOrFetch(ctx context.Context, opts Options, fetch FetchFunc) (*Collection, error) {
	opts.Records = nil

	if opts.Location != "" {
		c, err := New(ctx, opts)
		switch {
		case err == nil:
			return c, nil
		case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrParse):
			opts.Logger.Warn().
				Err(err).
				Str("snapshot", opts.Location).
				Msg("Snapshot unusable, fetching live")
		default:
			return nil, err
		}
	}

	records, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}

	opts.Records = records
	return New(ctx, opts)
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return len(c.records)
}

// Records returns a copy of the record slice. The records themselves are
// shared and must not be modified.
func (c *Collection) Records() []Record {
	return append([]Record(nil), c.records...)
}

// FromSnapshot reports whether the collection was loaded from a snapshot.
func (c *Collection) FromSnapshot() bool {
	return c.fromSnapshot
}

// Location returns the snapshot location, if any.
func (c *Collection) Location() string {
	return c.location
}

// FindScoreBySubject returns the score of the one record whose subject field
// equals id. found is false when no record matches. A null remote score is
// returned as found with a nil score. More than one match fails with
// errs.ErrDuplicateSubject.
func (c *Collection) FindScoreBySubject(id int64) (found bool, score *float64, err error) {
	matches := 0
	var scoreErr error

	for _, r := range c.records {
		v, ok := r.Int(c.fields.Subject)
		if !ok || v != id {
			continue
		}
		matches++
		if matches == 1 {
			score, scoreErr = r.Score(c.fields.Score)
		}
	}

	switch {
	case matches > 1:
		return false, nil, errs.Duplicate(c.fields.Subject, id, matches)
	case matches == 0:
		return false, nil, nil
	case scoreErr != nil:
		return false, nil, fmt.Errorf("%s=%d: %w", c.fields.Subject, id, scoreErr)
	}
	return true, score, nil
}

// FindSubjectByLogin returns the user id of the one record whose login field
// equals login, ignoring case. Records without a login are skipped with a
// warning. No match fails with errs.ErrNotFound; more than one with
// errs.ErrDuplicateSubject.
func (c *Collection) FindSubjectByLogin(login string) (int64, error) {
	matches := 0
	var id int64
	var idOK bool

	for _, r := range c.records {
		value, ok := r[c.fields.Login].(string)
		if !ok {
			c.logger.Warn().
				Interface("name", r[c.fields.Name]).
				Interface("id", r[c.fields.ID]).
				Msg("Record has no login identifier")
			continue
		}
		if !strings.EqualFold(value, login) {
			continue
		}
		matches++
		if matches == 1 {
			id, idOK = r.Int(c.fields.ID)
		}
	}

	switch {
	case matches > 1:
		return 0, errs.Duplicate(c.fields.Login, login, matches)
	case matches == 0:
		return 0, errs.NotFound(c.fields.Login, login)
	case !idOK:
		return 0, fmt.Errorf("%w: record with %s=%s has no numeric %s", errs.ErrParse, c.fields.Login, login, c.fields.ID)
	}
	return id, nil
}
