// Package bridge implements the request/response channel between the
// foreground and the background analysis engine.
//
// Both ends exchange length-delimited msgpack frames. Each outbound request
// carries a method name, an argument list and a correlation id; each reply
// carries the correlation id and a result or error. Correlation ids increase
// monotonically per channel and are never reused, so each reply resolves its
// originating call exactly once regardless of arrival order. A reserved
// sentinel id announces background readiness; Dial only hands out a channel
// once that frame has been observed.
//
// The package is transport-generic: it moves bytes and matches replies, and
// knows nothing about the analysis operations layered on top (see
// internal/session).
package bridge
