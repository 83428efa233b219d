// Package storage persists recipients and dispatch reports.
//
// Drivers:
//   - memory: process-local maps, for tests and demos
//   - file: JSON snapshot + JSONL journal, no external services
//   - sqlite: embedded database file (modernc.org/sqlite)
//   - postgres: PostGIS-backed radius search (pgx)
//   - redis: GEO set + hashes (go-redis)
//
// Every driver returns radius results already filtered for eligibility:
// verified recipients with a valid location within the radius, excluding
// the given ID, deduplicated and ordered by distance.
package storage
