package pkg

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// IPResolver reads the client IP from proxy headers, but only when the
// request comes straight from one of the trusted proxies.
type IPResolver struct {
	trusted []*net.IPNet
}

// NewIPResolver accepts CIDRs or bare IPs.
func NewIPResolver(trustedProxies []string) (*IPResolver, error) {
	res := &IPResolver{}
	for _, p := range trustedProxies {
		p = strings.TrimSpace(p)
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy [%s]", p)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			res.trusted = append(res.trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy [%s]: %w", p, err)
		}
		res.trusted = append(res.trusted, ipNet)
	}
	return res, nil
}

func (res *IPResolver) isTrusted(addr string) bool {
	if res == nil {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range res.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address, or the address the trusted proxy in
// front of the service reported.
func (res *IPResolver) ClientIP(r *http.Request) string {
	remote := stripPort(r.RemoteAddr)
	if !res.isTrusted(remote) {
		return remote
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); realIP != "" {
		return stripPort(realIP)
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		// the rightmost hop not added by our own proxies
		for i := len(hops) - 1; i >= 0; i-- {
			hop := stripPort(strings.TrimSpace(hops[i]))
			if hop != "" && (i == 0 || !res.isTrusted(hop)) {
				return hop
			}
		}
	}

	return remote
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ReadUserIP returns the client IP resolved earlier in the middleware chain,
// or the peer address.
func ReadUserIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return stripPort(r.RemoteAddr)
}
