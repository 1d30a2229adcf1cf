package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
)

// Record is one remote entity (a submission or a roster entry) as decoded
// from the Canvas API. Its schema is defined by Canvas; only the fields named
// in Fields are interpreted.
type Record map[string]any

// Fields names the record fields read by the collection lookups.
type Fields struct {
	// Subject identifies the user a submission belongs to.
	Subject string
	// Score is the submission's current score.
	Score string
	// Login is the roster entry's login identifier (usually an email).
	Login string
	// ID is the roster entry's user id.
	ID string
	// Name is used in log output for records without a login identifier.
	Name string
}

// DefaultFields returns the Canvas field names.
func DefaultFields() Fields {
	return Fields{
		Subject: "user_id",
		Score:   "score",
		Login:   "login_id",
		ID:      "id",
		Name:    "name",
	}
}

func (f Fields) withDefaults() Fields {
	d := DefaultFields()
	if f.Subject == "" {
		f.Subject = d.Subject
	}
	if f.Score == "" {
		f.Score = d.Score
	}
	if f.Login == "" {
		f.Login = d.Login
	}
	if f.ID == "" {
		f.ID = d.ID
	}
	if f.Name == "" {
		f.Name = d.Name
	}
	return f
}

// Int returns the field as an integer id. Canvas ids decode as float64.
func (r Record) Int(field string) (int64, bool) {
	switch v := r[field].(type) {
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// Score returns the field as a score. A missing or null value yields nil.
func (r Record) Score(field string) (*float64, error) {
	var f float64
	switch v := r[field].(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not numeric", errs.ErrParse, field, v)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("%w: %s=%v is not numeric", errs.ErrParse, field, v)
	}
	return &f, nil
}

// Encode serializes records as a tab-indented JSON array.
func Encode(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrParse, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: snapshot is not a JSON array", errs.ErrParse)
	}
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("%w: snapshot record %d is not an object", errs.ErrParse, i)
		}
	}
	return records, nil
}
