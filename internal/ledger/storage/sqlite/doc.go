// Package sqlite provides SQLite-backed ledger persistence.
//
// It is the default on-disk store for players, modes, ratings, matches and
// map rotation, and it owns schema evolution: opening a store adopts any
// pre-tenancy database it finds before applying the bundled migrations.
package sqlite
