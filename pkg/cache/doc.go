// Package cache holds fetched Canvas collections and persists them as
// snapshots.
//
// A Collection is built from live records, from a snapshot, or from live
// records that are saved as a snapshot at the same time:
//
//   - Records only: the records are kept in memory.
//   - Records and Location: the records are kept and written to Location.
//   - Location only: the records are read from the snapshot at Location.
//
// Supplied records are never replaced by snapshot contents. LoadOrFetch
// covers the common case of reusing a snapshot when one exists and fetching
// live otherwise.
//
// # Basic Usage
//
//	coll, err := cache.LoadOrFetch(ctx, cache.Options{
//		Location: "submissions.json",
//		Logger:   logger,
//	}, func(ctx context.Context) ([]cache.Record, error) {
//		return assignment.Submissions(ctx)
//	})
//
//	found, score, err := coll.FindScoreBySubject(42)
//
// # Snapshot Stores
//
// FileStore (the default) writes tab-indented JSON arrays and replaces files
// atomically, so a crash never leaves a truncated snapshot behind.
// RedisStore keeps snapshots in Redis under RedisKeyPrefix for sharing
// between machines.
//
// # Metrics
//
//   - canvas_snapshot_loads_total{store,result} - hit, miss or invalid
//   - canvas_snapshot_saves_total{store} - Persisted snapshots
//   - canvas_snapshot_size_bytes{store} - Size of the last snapshot
//   - canvas_snapshot_errors_total{store,operation} - Store failures
package cache
