// Package device holds the per-TV state records.
//
// The Store is the single source of truth for runtime state (connection
// state, cached volume/mute/app/power, activity timestamps); it is purely
// in-memory and rebuilt on startup. Pairing credentials are the exception:
// they go through CredentialsRepository into SQLite so devices stay paired
// across restarts.
package device
