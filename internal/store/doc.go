// Package store provides durable storage for audit artifacts: schema
// reports produced by contract application and threshold resolutions
// served to audit queries.
//
// Storage is SQLite in WAL mode. Artifacts are append-only evidence;
// writes are idempotent on their natural keys so re-running a pipeline
// never duplicates or overwrites what an auditor already saw.
package store
