package egress

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"propertysanta/engine/internal/llm"
)

// DefaultMaxRequestBytes bounds a single outbound model request. Two photos at
// the validator ceiling plus base64 overhead fit comfortably.
const DefaultMaxRequestBytes int64 = 64 * 1024 * 1024

// Policy restricts outbound model traffic to HTTPS requests against a fixed set
// of provider hosts, with a ceiling on request size so photo payloads cannot
// grow unbounded.
type Policy struct {
	Base            http.RoundTripper
	Allowlist       map[string]bool
	MaxRequestBytes int64
}

// NewPolicy returns a RoundTripper enforcing the host allowlist.
func NewPolicy(base http.RoundTripper, hosts []string) *Policy {
	allowlist := make(map[string]bool, len(hosts))
	for _, host := range hosts {
		allowlist[strings.ToLower(strings.TrimSpace(host))] = true
	}
	return &Policy{Base: base, Allowlist: allowlist, MaxRequestBytes: DefaultMaxRequestBytes}
}

// Check reports whether a request may leave the process.
func (p *Policy) Check(req *http.Request) error {
	if req == nil || req.URL == nil {
		return llm.ErrEgressBlocked
	}
	if req.URL.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", llm.ErrEgressBlocked, req.URL.Scheme)
	}
	host := req.URL.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return fmt.Errorf("%w: host %q", llm.ErrEgressBlocked, host)
	}
	if !p.Allowlist[strings.ToLower(host)] {
		return fmt.Errorf("%w: host %q not allowed", llm.ErrEgressBlocked, host)
	}
	if p.MaxRequestBytes > 0 && req.ContentLength > p.MaxRequestBytes {
		return fmt.Errorf("%w: request of %d bytes exceeds %d", llm.ErrEgressBlocked, req.ContentLength, p.MaxRequestBytes)
	}
	return nil
}

func (p *Policy) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := p.Check(req); err != nil {
		return nil, err
	}
	base := p.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
