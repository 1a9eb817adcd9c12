// Package security implements the C5 admission gate: method allow-list,
// path and query sanity checks, IP allow/deny filtering and per-client
// rate limiting, applied in that order before any origin is contacted.
package security

import (
	"net/http"
	"strings"
	"time"

	pnet "github.com/originproxy/originproxy/net"
	"github.com/originproxy/originproxy/ratelimit"
)

// Rejection describes why a request was refused admission, carrying the
// status code and short neutral body the proxy itself originates.
type Rejection struct {
	StatusCode int
	Message    string
}

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodHead:    true,
}

var suspiciousQuerySubstrings = []string{`'`, `"`, `;`, `--`}

// Settings configures a Gate.
type Settings struct {
	IPMode              IPFilterMode
	AllowIPs            []string
	DenyIPs             []string
	RateLimit           int
	RateWindowS         int
	RateCleanEvery      int // seconds; 0 uses the ratelimit package default of "no cleaner"
	StrictQueryCheck    bool
	AllowedContentTypes []string
}

// IPFilterMode selects how AllowIPs/DenyIPs are interpreted.
type IPFilterMode string

const (
	AllowListMode IPFilterMode = "allow-list"
	DenyListMode  IPFilterMode = "deny-list"
)

// Gate performs per-request admission checks.
type Gate struct {
	settings Settings
	allowSet map[string]bool
	denySet  map[string]bool
	limiter  *ratelimit.Ratelimit
}

// New builds a Gate from Settings.
func New(settings Settings) *Gate {
	g := &Gate{settings: settings}

	g.allowSet = toSet(settings.AllowIPs)
	g.denySet = toSet(settings.DenyIPs)

	g.limiter = ratelimit.New(ratelimit.Settings{
		MaxHits:    settings.RateLimit,
		WindowS:    settings.RateWindowS,
		CleanEvery: time.Duration(settings.RateCleanEvery) * time.Second,
	})

	return g
}

func toSet(values []string) map[string]bool {
	s := make(map[string]bool, len(values))
	for _, v := range values {
		s[v] = true
	}
	return s
}

// Close releases background resources (the rate limit cleaner).
func (g *Gate) Close() {
	g.limiter.Close()
}

// Admit runs every check in spec order and returns the first rejection
// encountered, or nil if the request is admitted.
func (g *Gate) Admit(r *http.Request) *Rejection {
	if rej := checkMethod(r); rej != nil {
		return rej
	}
	if rej := checkPath(r); rej != nil {
		return rej
	}
	if rej := g.checkQuery(r); rej != nil {
		return rej
	}
	if rej := g.checkIP(r); rej != nil {
		return rej
	}
	if rej := g.checkRate(r); rej != nil {
		return rej
	}
	if rej := g.checkContentType(r); rej != nil {
		return rej
	}
	return nil
}

func checkMethod(r *http.Request) *Rejection {
	if !allowedMethods[r.Method] {
		return &Rejection{StatusCode: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}
	return nil
}

func checkPath(r *http.Request) *Rejection {
	path := r.URL.Path
	if strings.Contains(path, "..") || strings.Contains(path, "//") {
		return &Rejection{StatusCode: http.StatusBadRequest, Message: "Invalid path"}
	}
	return nil
}

func (g *Gate) checkQuery(r *http.Request) *Rejection {
	if !g.settings.StrictQueryCheck {
		return nil
	}

	for _, values := range r.URL.Query() {
		for _, v := range values {
			for _, bad := range suspiciousQuerySubstrings {
				if strings.Contains(v, bad) {
					return &Rejection{StatusCode: http.StatusBadRequest, Message: "Invalid query parameter"}
				}
			}
		}
	}
	return nil
}

func (g *Gate) checkIP(r *http.Request) *Rejection {
	if len(g.allowSet) == 0 && len(g.denySet) == 0 {
		return nil
	}

	ip := pnet.ClientIP(r)

	switch g.settings.IPMode {
	case AllowListMode:
		if !g.allowSet[ip] {
			return &Rejection{StatusCode: http.StatusForbidden, Message: "Access denied"}
		}
	case DenyListMode:
		if g.denySet[ip] {
			return &Rejection{StatusCode: http.StatusForbidden, Message: "Access denied"}
		}
	}
	return nil
}

func (g *Gate) checkRate(r *http.Request) *Rejection {
	ip := pnet.ClientIP(r)
	if !g.limiter.Allow(ip) {
		return &Rejection{StatusCode: http.StatusTooManyRequests, Message: "Too many requests"}
	}
	return nil
}

// checkContentType implements the supplemented 415 rule: for POST and PUT,
// a Content-Type (parameters ignored) that is not in AllowedContentTypes
// is rejected; a request without a Content-Type passes. Disabled (a pass)
// when the list is empty.
func (g *Gate) checkContentType(r *http.Request) *Rejection {
	if len(g.settings.AllowedContentTypes) == 0 {
		return nil
	}
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return nil
	}

	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return nil
	}
	if i := strings.Index(ct, ";"); i != -1 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)

	for _, allowed := range g.settings.AllowedContentTypes {
		if strings.EqualFold(allowed, ct) {
			return nil
		}
	}

	return &Rejection{StatusCode: http.StatusUnsupportedMediaType, Message: "Unsupported content type"}
}
