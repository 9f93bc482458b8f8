// Package stores persists the installer's run history in SQLite.
// SQLiteStore implements engine.Recorder, so it can be handed straight to
// the engine, and answers the history queries behind the CLI. The schema is
// embedded and applied with golang-migrate.
package stores
