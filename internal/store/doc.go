// Package store persists sounds, profiles, library entries and search
// history in SQLite. The schema is embedded and applied with
// golang-migrate on open.
package store
