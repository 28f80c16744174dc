package socks5

import (
	"errors"
	"syscall"
)

// classifyDialError maps a failed upstream dial to a ReplyCode by
// inspecting the underlying OS error code, per the §9 redesign of the
// original string-matching heuristic. ECONNREFUSED gives
// ConnectionRefused, EHOSTUNREACH/EHOSTDOWN give HostUnreachable,
// ENETUNREACH/ENETDOWN give NetworkUnreachable, ETIMEDOUT gives TTLExpired,
// and anything else (including errors carrying no errno) gives the generic
// Failure catch-all. The original implementation never produced
// ConnectionRefused; this one does.
func classifyDialError(err error) ReplyCode {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return ReplyConnectionRefused
		case syscall.EHOSTUNREACH, syscall.EHOSTDOWN:
			return ReplyHostUnreachable
		case syscall.ENETUNREACH, syscall.ENETDOWN:
			return ReplyNetworkUnreachable
		case syscall.ETIMEDOUT:
			return ReplyTTLExpired
		}
	}
	return ReplyFailure
}
