package socks5

import (
	"fmt"
	"io"
	"net"
)

// Greeting is the client's initial offer: VER | NMETHODS | METHODS[n].
type Greeting struct {
	Methods []AuthMethod
}

// ReadGreeting decodes a client greeting from r. A non-0x05 version is
// reported as ErrUnsupportedVersion; the caller must close the connection
// without any reply in that case, per §4.A.
func ReadGreeting(r io.Reader) (Greeting, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Greeting{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
	}
	if hdr[0] != Version {
		return Greeting{}, fmt.Errorf("%w: got 0x%02x", ErrUnsupportedVersion, hdr[0])
	}

	n := int(hdr[1])
	if n == 0 {
		return Greeting{}, fmt.Errorf("%w: zero methods offered", ErrTruncatedInput)
	}

	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Greeting{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
	}

	methods := make([]AuthMethod, n)
	for i, code := range raw {
		methods[i] = ParseAuthMethod(code)
	}
	return Greeting{Methods: methods}, nil
}

// WriteMethodSelection sends the server's single-octet method choice.
func WriteMethodSelection(w io.Writer, method AuthMethod) error {
	_, err := w.Write([]byte{Version, method.Code()})
	return err
}

// UserPassRequest is the RFC 1929 sub-negotiation request: VER | ULEN |
// UNAME | PLEN | PASSWD.
type UserPassRequest struct {
	Username []byte
	Password []byte
}

// ReadUserPassRequest decodes an RFC 1929 credential exchange. ULEN and
// PLEN of zero are accepted by the framing even though RFC 1929 gives them
// a 1..=255 range; CredentialStore.Verify treats a zero-length field as a
// miss, so such a request fails authentication (boundary behavior in §8).
func ReadUserPassRequest(r io.Reader) (UserPassRequest, error) {
	var verLen [2]byte
	if _, err := io.ReadFull(r, verLen[:]); err != nil {
		return UserPassRequest{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
	}
	if verLen[0] != authVersion {
		return UserPassRequest{}, fmt.Errorf("%w: auth version 0x%02x", ErrUnsupportedVersion, verLen[0])
	}

	username := make([]byte, verLen[1])
	if len(username) > 0 {
		if _, err := io.ReadFull(r, username); err != nil {
			return UserPassRequest{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
		}
	}

	var plen [1]byte
	if _, err := io.ReadFull(r, plen[:]); err != nil {
		return UserPassRequest{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
	}

	password := make([]byte, plen[0])
	if len(password) > 0 {
		if _, err := io.ReadFull(r, password); err != nil {
			return UserPassRequest{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
		}
	}

	return UserPassRequest{Username: username, Password: password}, nil
}

// WriteUserPassReply sends the RFC 1929 status octet: VER | STATUS.
func WriteUserPassReply(w io.Writer, ok bool) error {
	status := byte(0x01)
	if ok {
		status = 0x00
	}
	_, err := w.Write([]byte{authVersion, status})
	return err
}

// Request is a decoded SOCKS5 request: VER | CMD | RSV | ATYP | DST.ADDR |
// DST.PORT.
type Request struct {
	Command Command
	Dest    Address
}

// ReadRequest decodes a client request from r. The version octet has
// already been validated as part of the greeting phase for this
// connection, but is re-checked here since a request is logically a
// separate datagram.
func ReadRequest(r io.Reader) (Request, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
	}
	if hdr[0] != Version {
		return Request{}, fmt.Errorf("%w: got 0x%02x", ErrUnsupportedVersion, hdr[0])
	}

	cmd, err := ParseCommand(hdr[1])
	if err != nil {
		return Request{}, err
	}

	addr, err := ReadAddress(r, AddressType(hdr[3]))
	if err != nil {
		return Request{}, err
	}

	return Request{Command: cmd, Dest: addr}, nil
}

// WriteReply encodes a full RFC-1928-compliant reply: VER | REP | RSV |
// ATYP | BND.ADDR | BND.PORT. The server chooses strict compliance per the
// §9 design note, always sending the real (or zero) bound endpoint rather
// than the two-byte truncated form some deployments use for success.
func WriteReply(w io.Writer, code ReplyCode, bound Address) error {
	if bound.Type == 0 {
		bound = Address{Type: ATYPV4, IP: make(net.IP, 4)}
	}

	var hdr [4]byte
	hdr[0] = Version
	hdr[1] = byte(code)
	hdr[2] = reserved
	// hdr[3] is filled by bound.WriteTo via its own ATYP byte; we only
	// need the first three octets here.
	if _, err := w.Write(hdr[:3]); err != nil {
		return err
	}
	_, err := bound.WriteTo(w)
	return err
}

// WriteFailureReply emits the compact two-byte [VER, REP] sequence the
// specification uses for every non-success outcome (§4.A, §7).
func WriteFailureReply(w io.Writer, code ReplyCode) error {
	_, err := w.Write([]byte{Version, byte(code)})
	return err
}
