// Package lineage records the transformation trail the schema engine
// leaves behind. Every column-level operation becomes an immutable
// TransformEvent; the finalized SchemaReport is the audit artifact the
// downstream evidence layer packages.
package lineage

import "time"

// EventType identifies one kind of column-level transformation.
type EventType string

const (
	EventRename EventType = "rename"
	EventCast   EventType = "cast"
	EventDrop   EventType = "drop"
	EventAdd    EventType = "add"
	EventFill   EventType = "fill"
)

// TransformEvent is one immutable entry in the lineage trail.
// Events are append-only; nothing mutates one after Record returns.
type TransformEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	// Columns affected by the operation, post-operation names.
	Columns []string `json:"columns"`
	// Before/After hold the old and new column name for renames, or
	// the old and new dtype for casts.
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
	// NullCount is the null population after the operation.
	NullCount int `json:"null_count,omitempty"`
	// InvalidCount is how many values failed coercion and were
	// nulled.
	InvalidCount int `json:"invalid_count,omitempty"`
	// FilledCount is how many nulls a fill policy replaced.
	FilledCount int `json:"filled_count,omitempty"`
	// Meta carries free-form context (matched alias, fill policy,
	// drop reason).
	Meta map[string]string `json:"meta,omitempty"`
}
