// Package net provides small HTTP helpers shared by the forwarder
// packages: hop-by-hop header stripping, forwarded-header injection, and
// client IP extraction.
package net

import (
	"net/http"
	"strconv"
	"strings"
)

// HopByHop lists the headers that are never copied verbatim from an
// inbound request to the outbound one; the transport sets them itself.
var HopByHop = []string{"Host", "Content-Length", "Transfer-Encoding"}

func isHopByHop(name string) bool {
	for _, h := range HopByHop {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// CopyHeaders copies every header from src to dst except the hop-by-hop
// ones, preserving multi-value headers.
func CopyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// Forwarded carries the values injected as X-Forwarded-* and X-Proxy-ID
// headers on the outbound request, per spec.md §4.4 and §6.
type Forwarded struct {
	For      string
	Proto    string
	Host     string
	Port     string
	ProxyID  string
}

// Apply sets the forwarded headers on h. X-Forwarded-For is set verbatim
// to f.For, which the caller has already resolved to "the inbound
// X-Forwarded-For value, or the client IP" per spec.md §4.4 — the
// outbound request's copy of any inbound X-Forwarded-For header (carried
// over by CopyHeaders) is replaced rather than appended to, so the value
// is never duplicated.
func (f Forwarded) Apply(h http.Header) {
	if f.For != "" {
		h.Set("X-Forwarded-For", f.For)
	}
	if f.Proto != "" {
		h.Set("X-Forwarded-Proto", f.Proto)
	}
	if f.Host != "" {
		h.Set("X-Forwarded-Host", f.Host)
	}
	if f.Port != "" {
		h.Set("X-Forwarded-Port", f.Port)
	}
	if f.ProxyID != "" {
		h.Set("X-Proxy-ID", f.ProxyID)
	}
}

// ClientIP extracts the socket peer address from r.RemoteAddr, stripping
// the port. The proxy is assumed to be the network edge, so
// X-Forwarded-For from the client is never trusted for this purpose.
func ClientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if addr == "" {
		return ""
	}

	if i := strings.LastIndex(addr, ":"); i != -1 && !strings.Contains(addr[i:], "]") {
		// handles "host:port" and bracketed IPv6 "[::1]:port"
		host := addr[:i]
		host = strings.TrimPrefix(host, "[")
		host = strings.TrimSuffix(host, "]")
		return host
	}

	return strings.Trim(addr, "[]")
}

// LocalPort extracts the local port the server accepted the connection
// on, used for X-Forwarded-Port. Returns "" if unavailable.
func LocalPort(r *http.Request) string {
	ctx := r.Context()
	if addr, ok := ctx.Value(localAddrContextKey{}).(string); ok {
		if i := strings.LastIndex(addr, ":"); i != -1 {
			if _, err := strconv.Atoi(addr[i+1:]); err == nil {
				return addr[i+1:]
			}
		}
	}
	return ""
}

type localAddrContextKey struct{}

// LocalAddrContextKey is exported so that the server's ConnContext hook
// (wired in cmd/originproxy's main) can stash the listener's local address for
// LocalPort to read back out.
var LocalAddrContextKey = localAddrContextKey{}
