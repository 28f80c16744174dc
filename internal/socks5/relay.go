package socks5

import (
	"io"
	"net"
	"sync"

	"github.com/socks5d/socks5d/internal/metrics"
)

// relayBufferSize sizes the pooled copy buffer for each relay direction.
// The specification leaves this free to the implementer (typically
// 4-64 KiB); this follows the reference proxy's 32 KiB choice.
const relayBufferSize = 32 * 1024

var relayBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, relayBufferSize)
		return &buf
	},
}

// relay runs the two independent unidirectional copies of §4.D concurrently
// and returns once both have terminated. Half-closes propagate exactly as
// specified: each direction closes its own read side on the source and its
// own write side on the destination when it is done.
func relay(client, upstream net.Conn, m *metrics.Collector) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		copyDirection(upstream, client, "upstream", m)
	}()

	go func() {
		defer wg.Done()
		copyDirection(client, upstream, "downstream", m)
	}()

	wg.Wait()
}

// copyDirection copies from src to dst, then half-closes both ends: dst's
// write side (no more data follows) and src's read side (nothing further
// will be consumed from it).
func copyDirection(dst, src net.Conn, direction string, m *metrics.Collector) {
	bufp := relayBufPool.Get().(*[]byte)
	defer relayBufPool.Put(bufp)

	n, _ := io.CopyBuffer(dst, src, *bufp)
	m.RelayBytesCopied(direction, n)

	if tc, ok := dst.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	if tc, ok := src.(*net.TCPConn); ok {
		_ = tc.CloseRead()
	}
}
