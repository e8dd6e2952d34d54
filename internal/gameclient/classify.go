// ABOUTME: Keyword classification of disconnect reasons into server-down vs policy causes.
// ABOUTME: Drives whether a failure feeds the automatic retry path or is surfaced as a hard error.

package gameclient

import (
	"errors"
	"net"
	"strings"
)

// serverDownReasons are substrings indicating the server itself is
// unreachable or shutting down. These feed the automatic retry path.
var serverDownReasons = []string{
	"connection timed out",
	"connection refused",
	"network unreachable",
	"host unreachable",
	"no route to host",
	"connection reset",
	"server closed",
	"timeout",
	"eof",
	"broken pipe",
	"use of closed network connection",
}

// policyReasons are substrings indicating the server is up but rejected the
// account: no amount of retrying fixes these, so they surface as hard errors.
var policyReasons = []string{
	"please log into xbox",
	"loggedinotherlocation",
	"logged in other location",
	"logged in from another location",
	"authentication",
	"xbox live",
	"microsoft account",
	"premium account",
	"whitelist",
	"banned",
	"kicked",
	"full server",
	"server is full",
}

// ServerDown reports whether a disconnect reason points at the server being
// unreachable. The match is a substring heuristic over lowercase text;
// unknown reasons default to server-down so the fleet fails open toward
// retry rather than silently dropping a bot.
func ServerDown(reason string) bool {
	if reason == "" {
		return true
	}

	lower := strings.ToLower(reason)

	for _, r := range serverDownReasons {
		if strings.Contains(lower, r) {
			return true
		}
	}

	for _, r := range policyReasons {
		if strings.Contains(lower, r) {
			return false
		}
	}

	return true
}

// IsConnectTimeout reports whether a dial error is a plain connect timeout.
// These are routine during server downtime and must not produce a
// user-visible error notification, only a retry.
func IsConnectTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "connect timed out") ||
		strings.Contains(lower, "i/o timeout")
}
