package service

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
)

var (
	errInvalidHost   = errors.New("invalid host")
	errInvalidOrigin = errors.New("invalid origin")
)

// hostGuard rejects requests whose Host or Origin names a machine other than
// this one, so a browser page cannot reach the server through DNS rebinding.
// Loopback names always pass. Configured entries match exactly, or by suffix
// when they start with a dot (".example.com").
type hostGuard struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostGuard(hosts []string) hostGuard {
	g := hostGuard{exact: make(map[string]struct{}, len(hosts))}
	for _, entry := range hosts {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "", entry == ".":
		case strings.HasPrefix(entry, "."):
			g.suffixes = append(g.suffixes, entry)
		default:
			g.exact[entry] = struct{}{}
		}
	}
	return g
}

// check validates r's Host header and, when present, its Origin header.
func (g hostGuard) check(r *http.Request) error {
	if r == nil || !g.allows(r.Host) {
		return errInvalidHost
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return nil
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" || !g.allows(parsed.Host) {
		return errInvalidOrigin
	}
	return nil
}

func (g hostGuard) allows(hostport string) bool {
	host, ok := hostname(hostport)
	if !ok {
		return false
	}
	if isLoopback(host) {
		return true
	}
	if _, ok := g.exact[host]; ok {
		return true
	}
	for _, suffix := range g.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// hostname strips the port and IPv6 brackets from a Host or Origin authority
// and lower-cases the result.
func hostname(hostport string) (string, bool) {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host), host != ""
	}
	if strings.HasPrefix(hostport, "[") {
		if !strings.HasSuffix(hostport, "]") {
			return "", false
		}
		hostport = hostport[1 : len(hostport)-1]
	}
	// A bare IPv6 literal has several colons and no port.
	if strings.Count(hostport, ":") == 1 {
		return "", false
	}
	return strings.ToLower(hostport), true
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// allowRequest spends one rate-limit token for the calling client.
func (t *HTTPTransport) allowRequest(r *http.Request) bool {
	return t.limiter.Allow(clientKey(r), t.now())
}

// clientKey identifies the caller for rate limiting by remote IP.
func clientKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
