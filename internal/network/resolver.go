package network

import (
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

// UnknownAddress is returned when no address can be determined.
const UnknownAddress = "unknown"

const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
)

// Resolver determines the real client address of a request. Forwarding headers
// are honored only when the immediate peer is a trusted network.
type Resolver struct {
	state atomic.Pointer[resolverState]
}

type resolverState struct {
	trustedProxies []string
	cdnHeader      string
}

type ResolverOption func(*resolverState)

// WithTrustedProxies sets the addresses/CIDRs whose forwarding headers are trusted.
// Invalid entries are ignored.
func WithTrustedProxies(ranges []string) ResolverOption {
	return func(s *resolverState) {
		s.trustedProxies = s.trustedProxies[:0]
		for _, raw := range ranges {
			normalized, err := NormalizeRange(raw)
			if err != nil {
				continue
			}
			s.trustedProxies = append(s.trustedProxies, normalized)
		}
	}
}

// WithCDNHeader overrides the header read when the peer is a CDN edge.
func WithCDNHeader(header string) ResolverOption {
	return func(s *resolverState) {
		if header = strings.TrimSpace(header); header != "" {
			s.cdnHeader = header
		}
	}
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	r.Configure(opts...)
	return r
}

// Configure replaces the trusted proxies and CDN header. Resolutions already
// running finish with the previous values.
func (r *Resolver) Configure(opts ...ResolverOption) {
	s := &resolverState{cdnHeader: DefaultCDNHeader}
	for _, opt := range opts {
		opt(s)
	}
	r.state.Store(s)
}

// Resolve returns exactly one address for the request: a validated header value
// when the peer is trusted, else the peer address, else UnknownAddress.
func (r *Resolver) Resolve(req *http.Request) string {
	if req == nil {
		return UnknownAddress
	}
	return r.ResolveFrom(req.RemoteAddr, req.Header)
}

// ResolveFrom applies the resolution order to a raw peer address and header set.
func (r *Resolver) ResolveFrom(remoteAddr string, header http.Header) string {
	s := r.state.Load()
	peer := parseAddress(remoteAddr)

	if peer != "" && IsCDNAddress(peer) {
		if ip := parseAddress(header.Get(s.cdnHeader)); ip != "" {
			return ip
		}
	}

	if peer != "" && s.isTrustedProxy(peer) {
		if ip := s.fromForwardedFor(header.Values(headerForwardedFor)); ip != "" {
			return ip
		}
		if ip := parseAddress(header.Get(headerRealIP)); ip != "" {
			return ip
		}
	}

	if peer != "" {
		return peer
	}
	return UnknownAddress
}

// fromForwardedFor scans the chain left to right (original client first) and
// returns the first valid address that is not one of our own proxies.
func (s *resolverState) fromForwardedFor(values []string) string {
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			ip := parseAddress(part)
			if ip == "" || s.isTrustedProxy(ip) {
				continue
			}
			return ip
		}
	}
	return ""
}

func (s *resolverState) isTrustedProxy(ip string) bool {
	return MatchesAny(ip, s.trustedProxies)
}

// parseAddress normalizes header and RemoteAddr formats: surrounding whitespace
// and quotes, "ip:port", "[v6]:port" and "[v6]". Returns "" when the result is
// not a valid address.
func parseAddress(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = trimMatchedPair(s, '"', '"')
	s = trimMatchedPair(s, '\'', '\'')
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = trimMatchedPair(s, '[', ']')

	ip := parseFamily(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}

func trimMatchedPair(s string, start, end byte) string {
	if len(s) < 2 || s[0] != start || s[len(s)-1] != end {
		return s
	}
	return s[1 : len(s)-1]
}
