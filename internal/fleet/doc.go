// ABOUTME: Package fleet supervises many independently failing game-server
// ABOUTME: connections: per-bot retry state machines plus a fleet-wide health sweep.

// Package fleet owns the connection lifecycle for every running bot.
//
// Each started bot gets one Supervisor driving one gameclient adapter from a
// single control loop, so state transitions for a bot are strictly ordered.
// The Manager holds the id-to-instance registry, enforces the one-instance-
// per-id invariant and per-owner quotas, runs the periodic liveness sweep,
// and escalates unresolved disconnections: five graded warnings, then one
// terminal notice and a forced stop. A manual stop always wins over any
// in-flight automatic handling.
package fleet
