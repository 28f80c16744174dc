package socks5

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"unicode/utf8"
)

// Address is the DST.ADDR/DST.PORT (or BND.ADDR/BND.PORT) sum type carried
// in SOCKS5 requests and replies: a V4 or V6 IP, or a length-prefixed
// domain name, plus a port. Domain is kept as raw wire octets rather than a
// Go string so that decode(encode(a)) == a holds even for a domain that
// happens not to be valid UTF-8 (see Resolve for how that case is handled).
type Address struct {
	Type   AddressType
	IP     net.IP // populated when Type is ATYPV4 or ATYPV6
	Domain []byte // populated when Type is ATYPDomain
	Port   uint16
}

// NewIPAddress builds an Address from a net.IP, choosing V4 or V6 framing
// based on whether the address has a 4-byte form.
func NewIPAddress(ip net.IP, port uint16) Address {
	if v4 := ip.To4(); v4 != nil {
		return Address{Type: ATYPV4, IP: v4, Port: port}
	}
	return Address{Type: ATYPV6, IP: ip.To16(), Port: port}
}

// NewDomainAddress builds a domain Address. name must be 1..=255 octets.
func NewDomainAddress(name []byte, port uint16) Address {
	return Address{Type: ATYPDomain, Domain: name, Port: port}
}

// String renders the address the way the specification composes a V6
// display form: eight 16-bit groups from consecutive octet pairs in
// network order. For V4 and domain it is the conventional host:port text.
func (a Address) String() string {
	switch a.Type {
	case ATYPV4, ATYPV6:
		return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
	case ATYPDomain:
		return net.JoinHostPort(domainText(a.Domain), strconv.Itoa(int(a.Port)))
	default:
		return fmt.Sprintf("<invalid address type 0x%02x>", byte(a.Type))
	}
}

// domainText renders domain octets as text for logging/resolution,
// falling back to the U+FFFD lossy rendering documented in §4.A when the
// bytes are not valid UTF-8 so a resolution attempt still runs.
func domainText(domain []byte) string {
	if utf8.Valid(domain) {
		return string(domain)
	}
	return string([]rune(string(domain)))
}

// ReadAddress decodes DST.ADDR/DST.PORT (or BND.ADDR/BND.PORT) for the
// given address type from r. The caller has already consumed ATYP.
func ReadAddress(r io.Reader, t AddressType) (Address, error) {
	var addr Address
	addr.Type = t

	switch t {
	case ATYPV4:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Address{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
		}
		addr.IP = net.IP(b[:]).To4()

	case ATYPV6:
		var b [16]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Address{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
		}
		addr.IP = append(net.IP(nil), b[:]...)

	case ATYPDomain:
		var lenBuf [1]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return Address{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
		}
		domain := make([]byte, lenBuf[0])
		if len(domain) > 0 {
			if _, err := io.ReadFull(r, domain); err != nil {
				return Address{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
			}
		}
		addr.Domain = domain

	default:
		return Address{}, ErrUnsupportedAddressType
	}

	var portBuf [2]byte
	if _, err := io.ReadFull(r, portBuf[:]); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrTruncatedInput, err)
	}
	addr.Port = binary.BigEndian.Uint16(portBuf[:])

	return addr, nil
}

// WriteTo encodes the address (ATYP | addr bytes | port) to w, matching the
// framing ReadAddress expects back — encode then decode round-trips.
func (a Address) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 0, 1+16+1+2)
	buf = append(buf, byte(a.Type))

	switch a.Type {
	case ATYPV4:
		v4 := a.IP.To4()
		if v4 == nil {
			return 0, fmt.Errorf("socks5: address marked V4 has no 4-byte form")
		}
		buf = append(buf, v4...)
	case ATYPV6:
		v6 := a.IP.To16()
		if v6 == nil {
			return 0, fmt.Errorf("socks5: address marked V6 has no 16-byte form")
		}
		buf = append(buf, v6...)
	case ATYPDomain:
		if len(a.Domain) > 255 {
			return 0, fmt.Errorf("socks5: domain name length %d exceeds 255", len(a.Domain))
		}
		buf = append(buf, byte(len(a.Domain)))
		buf = append(buf, a.Domain...)
	default:
		return 0, ErrUnsupportedAddressType
	}

	buf = binary.BigEndian.AppendUint16(buf, a.Port)

	n, err := w.Write(buf)
	return int64(n), err
}

// Resolve produces the socket addresses this Address names. V4/V6 always
// yield exactly one; Domain defers to the host resolver and may yield zero
// or more, tried by the caller in order.
func Resolve(ctx context.Context, a Address) ([]net.TCPAddr, error) {
	switch a.Type {
	case ATYPV4, ATYPV6:
		return []net.TCPAddr{{IP: a.IP, Port: int(a.Port)}}, nil

	case ATYPDomain:
		var resolver net.Resolver
		ips, err := resolver.LookupIP(ctx, "ip", domainText(a.Domain))
		if err != nil {
			return nil, err
		}
		addrs := make([]net.TCPAddr, 0, len(ips))
		for _, ip := range ips {
			addrs = append(addrs, net.TCPAddr{IP: ip, Port: int(a.Port)})
		}
		return addrs, nil

	default:
		return nil, ErrUnsupportedAddressType
	}
}
