// ABOUTME: Package api is the HTTP command surface for the fleet.
// ABOUTME: chi routes, JWT-authenticated handlers, and the websocket event feed.

// Package api exposes bot provisioning and control over HTTP.
//
// All /api routes require a bearer JWT resolving to a known user. Responses
// use a uniform envelope: {"ok":true,"value":...} on success and
// {"ok":false,"error":"..."} on failure. GET /api/events upgrades to a
// websocket that streams fleet notification signals.
package api
