package probe

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DNSLookup resolves a host to an IP address.
type DNSLookup interface {
	Lookup(ctx context.Context, host string) Result[string]
}

// WhoisLookup fetches registration data for a host.
type WhoisLookup interface {
	Lookup(ctx context.Context, host string) Result[WhoisRecord]
}

// TLSInspector inspects the certificate served by a host.
type TLSInspector interface {
	Inspect(ctx context.Context, host, addr string) Result[TLSReport]
}

// PortScanner reports the open ports of an IP address.
type PortScanner interface {
	Probe(ctx context.Context, ip string) PortReport
}

// Intel is the joined outcome of all probes for one host.
type Intel struct {
	Host  string
	DNS   Result[string]
	Whois Result[WhoisRecord]
	TLS   Result[TLSReport]
	Ports Result[PortReport]
}

// Target identifies what Gather probes.
type Target struct {
	// Host is the hostname or IP literal of the final URL.
	Host string

	// TLSPort is the port used for the TLS inspection, usually 443.
	TLSPort int
}

// Gatherer runs every probe for a host and joins their results.
type Gatherer struct {
	dns    DNSLookup
	whois  WhoisLookup
	tls    TLSInspector
	ports  PortScanner
	logger *slog.Logger
}

// GathererOption configures a Gatherer.
type GathererOption func(*Gatherer)

// WithDNS replaces the DNS probe.
func WithDNS(d DNSLookup) GathererOption {
	return func(g *Gatherer) {
		g.dns = d
	}
}

// WithWhois replaces the WHOIS probe.
func WithWhois(w WhoisLookup) GathererOption {
	return func(g *Gatherer) {
		g.whois = w
	}
}

// WithTLS replaces the TLS probe.
func WithTLS(t TLSInspector) GathererOption {
	return func(g *Gatherer) {
		g.tls = t
	}
}

// WithPortScanner replaces the port prober.
func WithPortScanner(p PortScanner) GathererOption {
	return func(g *Gatherer) {
		g.ports = p
	}
}

// WithGathererLogger sets the logger.
func WithGathererLogger(logger *slog.Logger) GathererOption {
	return func(g *Gatherer) {
		g.logger = logger
	}
}

// NewGatherer creates a Gatherer with the default probes.
func NewGatherer(opts ...GathererOption) *Gatherer {
	g := &Gatherer{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	if g.dns == nil {
		g.dns = NewDNSProbe(WithDNSLogger(g.logger))
	}
	if g.whois == nil {
		g.whois = NewWhoisProbe(WithWhoisLogger(g.logger))
	}
	if g.tls == nil {
		g.tls = NewTLSProbe(WithTLSLogger(g.logger))
	}
	if g.ports == nil {
		g.ports = NewPortProber(WithPortLogger(g.logger))
	}
	return g
}

// Gather runs DNS, WHOIS, TLS and port probes concurrently and waits for all
// of them. Results are independent of completion order. The port prober
// waits for the DNS probe because it needs the resolved address; when DNS
// fails the port result is ErrSkipped.
func (g *Gatherer) Gather(ctx context.Context, t Target) Intel {
	intel := Intel{Host: t.Host}
	if t.TLSPort == 0 {
		t.TLSPort = 443
	}

	resolved := make(chan Result[string], 1)

	// Workers store into distinct fields and never return an error, so one
	// probe's failure cannot cancel the others.
	var eg errgroup.Group
	eg.Go(func() error {
		intel.DNS = g.dns.Lookup(ctx, t.Host)
		resolved <- intel.DNS
		return nil
	})
	eg.Go(func() error {
		intel.Whois = g.whois.Lookup(ctx, t.Host)
		return nil
	})
	eg.Go(func() error {
		intel.TLS = g.tls.Inspect(ctx, t.Host, HostPort(t.Host, t.TLSPort))
		return nil
	})
	eg.Go(func() error {
		dns := <-resolved
		if !dns.OK() {
			intel.Ports = Fail[PortReport](fmt.Errorf("port scan of %s: %w", t.Host, ErrSkipped))
			return nil
		}
		intel.Ports = Succeed(g.ports.Probe(ctx, dns.Value))
		return nil
	})
	_ = eg.Wait()

	g.logger.Debug("probes finished",
		"host", t.Host,
		"dns_ok", intel.DNS.OK(),
		"whois_ok", intel.Whois.OK(),
		"tls_ok", intel.TLS.OK(),
		"ports_ok", intel.Ports.OK(),
	)
	return intel
}
