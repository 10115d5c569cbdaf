// Package stores keeps the history of script and lint runs in SQLite.
//
// Each run records the script it evaluated, the shape of the resulting scene
// and the policy findings lint reported for it, so recurring violations can
// be tracked across edits. The schema is managed with embedded migrations
// and file databases run in WAL mode.
package stores
