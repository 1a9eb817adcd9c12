package proxy

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/originproxy/originproxy/backend"
	pnet "github.com/originproxy/originproxy/net"
)

var upgrader = websocket.Upgrader{
	// Framing is passed through verbatim; the proxy itself has no
	// opinion on origin policy here (IP filtering already ran in the
	// security gate before this adapter is reached).
	CheckOrigin: func(r *http.Request) bool { return true },
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") &&
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// forwardWebSocket implements C7: it completes the server-side handshake,
// dials a matching upstream connection, and splices frames bidirectionally
// until either side closes or errors.
func (s *Server) forwardWebSocket(w http.ResponseWriter, r *http.Request, b *backend.Backend) error {
	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("proxy: ws upgrade client: %w", err)
	}
	defer clientConn.Close()

	upstreamURL := *b.URL
	switch upstreamURL.Scheme {
	case "http":
		upstreamURL.Scheme = "ws"
	case "https":
		upstreamURL.Scheme = "wss"
	}
	upstreamURL.Path = r.URL.Path
	upstreamURL.RawPath = r.URL.RawPath
	upstreamURL.RawQuery = r.URL.RawQuery

	reqHeader := http.Header{}
	pnet.CopyHeaders(reqHeader, r.Header)
	for _, h := range []string{"Connection", "Upgrade", "Sec-Websocket-Key", "Sec-Websocket-Version", "Sec-Websocket-Extensions", "Sec-Websocket-Protocol"} {
		reqHeader.Del(h)
	}
	s.forwardedFor(r, upstreamURL.Scheme).Apply(reqHeader)

	dialer := &websocket.Dialer{HandshakeTimeout: s.cfg.Upstream.DialTimeout}
	upstreamConn, _, err := dialer.Dial(upstreamURL.String(), reqHeader)
	if err != nil {
		clientConn.Close()
		return fmt.Errorf("proxy: ws dial %s: %w", b.ID, err)
	}
	defer upstreamConn.Close()

	return runWebSocketPumps(clientConn, upstreamConn, s.cfg.WS.PingInterval, s.cfg.WS.IdleTimeout)
}

// runWebSocketPumps runs the c2u and u2c pumps concurrently. Each pump
// reads one frame then writes it, so a blocked write backpressures the
// matching read; there is no intermediate buffering. The connection ends
// as soon as either side closes or errors, at which point both sockets
// are closed so the other pump's blocking call unblocks with an error.
func runWebSocketPumps(client, upstream *websocket.Conn, pingInterval, idleTimeout time.Duration) error {
	done := make(chan struct{})
	errc := make(chan error, 2)

	closeOnce := sync.OnceFunc(func() {
		client.Close()
		upstream.Close()
		close(done)
	})

	deadline := func(c *websocket.Conn) {
		if idleTimeout > 0 {
			c.SetReadDeadline(time.Now().Add(idleTimeout))
		}
	}
	deadline(client)
	deadline(upstream)

	client.SetPongHandler(func(string) error { deadline(client); return nil })
	upstream.SetPongHandler(func(string) error { deadline(upstream); return nil })

	pump := func(from, to *websocket.Conn) {
		for {
			mt, data, err := from.ReadMessage()
			if err != nil {
				errc <- err
				closeOnce()
				return
			}
			deadline(from)

			if err := to.WriteMessage(mt, data); err != nil {
				errc <- err
				closeOnce()
				return
			}
		}
	}

	go pump(client, upstream)
	go pump(upstream, client)

	var pinger *time.Ticker
	if pingInterval > 0 {
		pinger = time.NewTicker(pingInterval)
		defer pinger.Stop()
		go func() {
			for {
				select {
				case <-done:
					return
				case <-pinger.C:
					if err := client.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						return
					}
				}
			}
		}()
	}

	<-done
	err := <-errc

	if isNormalClose(err) {
		return nil
	}
	return fmt.Errorf("proxy: ws pump: %w", err)
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
