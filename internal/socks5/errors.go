package socks5

import "errors"

// Sentinel errors forming the protocol-violation taxonomy (§4.F / §7 of the
// specification). A session maps at most one of these to a ReplyCode before
// closing; fatal errors (short reads, wrong version before any reply has
// been sent) close the connection without a reply at all.
var (
	// ErrTruncatedInput indicates a short read while decoding a fixed or
	// length-prefixed field.
	ErrTruncatedInput = errors.New("socks5: truncated input")

	// ErrUnsupportedVersion indicates a greeting or request declared a
	// version other than 0x05.
	ErrUnsupportedVersion = errors.New("socks5: unsupported protocol version")

	// ErrUnsupportedCommand indicates a CMD other than CONNECT.
	ErrUnsupportedCommand = errors.New("socks5: unsupported command")

	// ErrUnsupportedAddressType indicates an ATYP outside {V4, Domain, V6}.
	ErrUnsupportedAddressType = errors.New("socks5: unsupported address type")

	// ErrNoAcceptableMethods indicates no method offered by the client was
	// enabled by the server.
	ErrNoAcceptableMethods = errors.New("socks5: no acceptable authentication method")

	// ErrAuthenticationFailed indicates a presented username/password pair
	// was not present in the credential table.
	ErrAuthenticationFailed = errors.New("socks5: authentication failed")
)
