package socks5

import "log/slog"

// LevelTrace sits below slog.LevelDebug for the per-byte-group parse
// tracing the specification calls for in §6; it is not emitted unless a
// handler is configured with a minimum level at or below this value.
const LevelTrace = slog.Level(-8)
