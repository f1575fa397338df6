package link

import (
	"context"
	"crypto/tls"
	"log"

	quic "github.com/quic-go/quic-go"
)

const alpn = "serialbus/1"

// withALPN ensures the serialbus protocol is negotiable.
func withALPN(tlsConf *tls.Config) *tls.Config {
	for _, p := range tlsConf.NextProtos {
		if p == alpn {
			return tlsConf
		}
	}
	tlsConf.NextProtos = append(tlsConf.NextProtos, alpn)
	return tlsConf
}

// quicStreamConn bundles a QUIC stream with its connection so closing the
// link tears both down.
type quicStreamConn struct {
	quic.Stream
	conn quic.Connection
}

func (q quicStreamConn) Close() error {
	_ = q.Stream.Close()
	return q.conn.CloseWithError(0, "done")
}

// DialQUIC connects to a serialbus peer or bridge at addr and returns the
// stream link carried over one bidirectional QUIC stream. A keepalive frame
// is sent immediately so the remote side sees the stream open even if this
// end never publishes.
func DialQUIC(ctx context.Context, addr string, tlsConf *tls.Config, logger *log.Logger) (*Stream, error) {
	conn, err := quic.DialAddr(ctx, addr, withALPN(tlsConf), &quic.Config{})
	if err != nil {
		return nil, err
	}
	st, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return nil, err
	}
	s := NewStream(quicStreamConn{Stream: st, conn: conn}, logger)
	if err := s.Send(nil); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// AcceptQUIC listens on addr, waits for a single peer, and returns the
// stream link for its first bidirectional stream. Meant for direct
// two-party deployments; multi-party relaying is the bridge's job.
func AcceptQUIC(ctx context.Context, addr string, tlsConf *tls.Config, logger *log.Logger) (*Stream, error) {
	l, err := quic.ListenAddr(addr, withALPN(tlsConf), &quic.Config{})
	if err != nil {
		return nil, err
	}
	defer l.Close()
	conn, err := l.Accept(ctx)
	if err != nil {
		return nil, err
	}
	st, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "accept stream failed")
		return nil, err
	}
	return NewStream(quicStreamConn{Stream: st, conn: conn}, logger), nil
}
