package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// DefaultDNSTimeout bounds a single DNS lookup.
const DefaultDNSTimeout = 5 * time.Second

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// DNSProbe resolves a hostname to a single IP address, preferring IPv4.
type DNSProbe struct {
	resolver Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

// DNSOption configures a DNSProbe.
type DNSOption func(*DNSProbe)

// WithResolver replaces the system resolver.
func WithResolver(r Resolver) DNSOption {
	return func(p *DNSProbe) {
		p.resolver = r
	}
}

// WithDNSTimeout sets the lookup timeout.
func WithDNSTimeout(d time.Duration) DNSOption {
	return func(p *DNSProbe) {
		p.timeout = d
	}
}

// WithDNSLogger sets the logger.
func WithDNSLogger(logger *slog.Logger) DNSOption {
	return func(p *DNSProbe) {
		p.logger = logger
	}
}

// NewDNSProbe creates a DNSProbe using net.DefaultResolver unless overridden.
func NewDNSProbe(opts ...DNSOption) *DNSProbe {
	p := &DNSProbe{
		resolver: net.DefaultResolver,
		timeout:  DefaultDNSTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Lookup resolves host. IP literals are returned unchanged.
func (p *DNSProbe) Lookup(ctx context.Context, host string) Result[string] {
	if ip := net.ParseIP(host); ip != nil {
		return Succeed(ip.String())
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addrs, err := p.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		p.logger.Debug("dns lookup failed", "host", host, "error", err)
		return Fail[string](fmt.Errorf("resolve %s: %w", host, err))
	}

	ip := pickAddress(addrs)
	if ip == nil {
		return Fail[string](fmt.Errorf("resolve %s: %w", host, ErrNoAddress))
	}
	return Succeed(ip.String())
}

// pickAddress returns the first IPv4 address, or the first address of any family.
func pickAddress(addrs []net.IPAddr) net.IP {
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP
	}
	return nil
}
