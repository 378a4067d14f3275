// Package history records finished optimizer runs in a SQLite database.
//
// Each run stores its headline metrics, winning prompt and full JSON report,
// plus one row per evaluated candidate so "leadscore history show" can list
// every prompt a run tried. The database uses the pure-Go modernc.org/sqlite
// driver; the schema is versioned and a mismatch is reported rather than
// migrated.
package history
