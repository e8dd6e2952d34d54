// ABOUTME: Package gameclient provides per-edition game server adapters behind
// ABOUTME: a single Client interface with a channel-based lifecycle event feed.

// Package gameclient connects individual bots to remote game servers.
//
// Each edition (Java over raw TCP, Bedrock over websocket) implements the
// Client interface. Adapters report lifecycle transitions on a buffered
// event channel and never retry on their own; reconnect policy belongs to
// the fleet supervisor that owns the client.
package gameclient
