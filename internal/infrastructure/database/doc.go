// Package database provides the SQLite persistence layer for the TV bridge.
//
// It wraps database/sql with WAL-mode setup, embedded schema migrations,
// and health checks. Scenes, sync groups, and paired-device credentials are
// stored here so the bridge survives restarts without re-pairing.
package database
