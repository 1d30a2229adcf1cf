package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotLoads tracks snapshot load attempts by store and result
	SnapshotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_snapshot_loads_total",
			Help: "Total number of snapshot load attempts",
		},
		[]string{"store", "result"}, // "file"|"redis", "hit"|"miss"|"invalid"
	)

	// SnapshotSaves tracks persisted snapshots by store
	SnapshotSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_snapshot_saves_total",
			Help: "Total number of snapshots persisted",
		},
		[]string{"store"},
	)

	// SnapshotSize tracks the size of the last snapshot read or written
	SnapshotSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "canvas_snapshot_size_bytes",
			Help: "Size of the most recent snapshot read or written in bytes",
		},
		[]string{"store"},
	)

	// SnapshotErrors tracks snapshot store errors
	SnapshotErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvas_snapshot_errors_total",
			Help: "Total number of snapshot store errors",
		},
		[]string{"store", "operation"}, // "load", "save", "delete"
	)
)
