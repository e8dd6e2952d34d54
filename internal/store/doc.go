// Package store provides persistence for minefleet.
//
// The Store interface covers user accounts, durable bot records, append-only
// connection-episode history, and scalar settings. SQLiteStore is the
// production implementation (modernc.org/sqlite, WAL mode, automatic schema
// creation); MockStore is an in-memory implementation for tests.
//
// Storage is a collaborator of the fleet, not its source of truth for
// liveness: running status in the bots table reflects RuntimeInstance
// existence eventually, reconciled by the fleet's health sweep.
package store
