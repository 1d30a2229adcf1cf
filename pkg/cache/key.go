package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// SnapshotKey identifies the snapshot of one Canvas collection.
type SnapshotKey struct {
	// CourseID is the parent course.
	CourseID int64

	// AssignmentID is the parent assignment (0 for course-level collections).
	AssignmentID int64

	// Resource is the collection name, e.g. "users" or "submissions".
	Resource string

	// QueryParams are the filter parameters the collection was fetched with.
	QueryParams url.Values
}

// String generates a deterministic key string, usable as a RedisStore location.
// Format: canvas:courses/1/assignments/2/submissions:param1=val1:param2=val2
//
// Example:
//
//	canvas:courses/101/users:enrollment_type[]=student
func (k SnapshotKey) String() string {
	parts := []string{"canvas", k.path()}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}

// FileName generates a file name for a FileStore location. Query
// parameters are not part of the name.
//
// Example:
//
//	course-101-assignment-7-submissions.json
func (k SnapshotKey) FileName() string {
	name := fmt.Sprintf("course-%d", k.CourseID)
	if k.AssignmentID > 0 {
		name += fmt.Sprintf("-assignment-%d", k.AssignmentID)
	}
	if k.Resource != "" {
		name += "-" + k.Resource
	}
	return name + ".json"
}

func (k SnapshotKey) path() string {
	p := fmt.Sprintf("courses/%d", k.CourseID)
	if k.AssignmentID > 0 {
		p += fmt.Sprintf("/assignments/%d", k.AssignmentID)
	}
	if k.Resource != "" {
		p += "/" + strings.Trim(k.Resource, "/")
	}
	return p
}
