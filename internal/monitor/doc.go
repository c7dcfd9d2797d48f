// Package monitor shows live tracker activity from a trackd feed.
//
// Run opens a full screen Bubble Tea table of connected trackers with their
// battery, signal, temperature, ping round trip and latest rotation, above a
// scrolling event log. Stream prints the same events as plain lines for
// pipes and logs.
//
// The monitor keeps no state of its own beyond what the feed tells it; a
// tracker appears on its first event and is marked when the server reports
// it timed out.
package monitor
