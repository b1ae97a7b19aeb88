package probe

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// fakeResolver returns canned addresses.
type fakeResolver struct {
	addrs []net.IPAddr
	err   error
	calls atomic.Int32
}

func (f *fakeResolver) LookupIPAddr(_ context.Context, _ string) ([]net.IPAddr, error) {
	f.calls.Add(1)
	return f.addrs, f.err
}

func TestDNSProbeLookup(t *testing.T) {
	t.Parallel()

	t.Run("prefers ipv4 address", func(t *testing.T) {
		t.Parallel()
		r := &fakeResolver{addrs: []net.IPAddr{
			{IP: net.ParseIP("2001:db8::1")},
			{IP: net.ParseIP("192.0.2.10")},
		}}
		res := NewDNSProbe(WithResolver(r)).Lookup(context.Background(), "example.com")
		if !res.OK() || res.Value != "192.0.2.10" {
			t.Errorf("Lookup() = %+v, want 192.0.2.10", res)
		}
	})

	t.Run("falls back to ipv6", func(t *testing.T) {
		t.Parallel()
		r := &fakeResolver{addrs: []net.IPAddr{{IP: net.ParseIP("2001:db8::1")}}}
		res := NewDNSProbe(WithResolver(r)).Lookup(context.Background(), "example.com")
		if !res.OK() || res.Value != "2001:db8::1" {
			t.Errorf("Lookup() = %+v, want 2001:db8::1", res)
		}
	})

	t.Run("ip literal skips resolver", func(t *testing.T) {
		t.Parallel()
		r := &fakeResolver{}
		res := NewDNSProbe(WithResolver(r)).Lookup(context.Background(), "203.0.113.7")
		if !res.OK() || res.Value != "203.0.113.7" {
			t.Errorf("Lookup() = %+v", res)
		}
		if r.calls.Load() != 0 {
			t.Error("resolver should not be called for ip literals")
		}
	})

	t.Run("resolver error is wrapped", func(t *testing.T) {
		t.Parallel()
		dnsErr := &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}
		r := &fakeResolver{err: dnsErr}
		res := NewDNSProbe(WithResolver(r)).Lookup(context.Background(), "nope.invalid")
		var target *net.DNSError
		if res.OK() || !errors.As(res.Err, &target) || !target.IsNotFound {
			t.Errorf("Lookup() err = %v, want wrapped *net.DNSError", res.Err)
		}
	})

	t.Run("empty answer", func(t *testing.T) {
		t.Parallel()
		res := NewDNSProbe(WithResolver(&fakeResolver{})).Lookup(context.Background(), "example.com")
		if !errors.Is(res.Err, ErrNoAddress) {
			t.Errorf("Lookup() err = %v, want %v", res.Err, ErrNoAddress)
		}
	})
}

// fakeWhoisClient returns a canned WHOIS response.
type fakeWhoisClient struct {
	text   string
	err    error
	domain atomic.Value
}

func (f *fakeWhoisClient) Whois(domain string, _ ...string) (string, error) {
	f.domain.Store(domain)
	return f.text, f.err
}

const verisignRecord = `   Domain Name: EXAMPLE.COM
   Registry Domain ID: 2336799_DOMAIN_COM-VRSN
   Registrar WHOIS Server: whois.example-registrar.com
   Registrar URL: http://www.example-registrar.com
   Updated Date: 2024-08-14T07:01:34Z
   Creation Date: %s
   Registry Expiry Date: 2030-08-13T04:00:00Z
   Registrar: Example Registrar, Inc.
   Registrar IANA ID: 9999
   Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
   Name Server: A.IANA-SERVERS.NET
   Name Server: B.IANA-SERVERS.NET
   DNSSEC: signedDelegation
`

func whoisText(created string) string {
	return fmt.Sprintf(verisignRecord, created)
}

func TestWhoisProbeLookup(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("computes age and registrar for registrable domain", func(t *testing.T) {
		t.Parallel()
		client := &fakeWhoisClient{text: whoisText("2026-05-10T04:00:00Z")}
		p := NewWhoisProbe(WithWhoisClient(client), WithWhoisClock(clock))

		res := p.Lookup(context.Background(), "login.example.com")
		if !res.OK() {
			t.Fatalf("Lookup() error = %v", res.Err)
		}
		if got := client.domain.Load(); got != "example.com" {
			t.Errorf("queried %v, want example.com", got)
		}
		if res.Value.AgeDays == nil || *res.Value.AgeDays != 10 {
			t.Errorf("AgeDays = %v, want 10", res.Value.AgeDays)
		}
		if res.Value.Registrar != "Example Registrar, Inc." {
			t.Errorf("Registrar = %q", res.Value.Registrar)
		}
	})

	t.Run("unparsable creation date leaves age nil", func(t *testing.T) {
		t.Parallel()
		client := &fakeWhoisClient{text: whoisText("sometime last spring")}
		p := NewWhoisProbe(WithWhoisClient(client), WithWhoisClock(clock))

		res := p.Lookup(context.Background(), "example.com")
		if !res.OK() {
			t.Fatalf("Lookup() error = %v", res.Err)
		}
		if res.Value.AgeDays != nil || res.Value.CreatedAt != nil {
			t.Errorf("AgeDays = %v, CreatedAt = %v, want nil", res.Value.AgeDays, res.Value.CreatedAt)
		}
	})

	t.Run("client failure is a probe failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("connection reset")
		p := NewWhoisProbe(WithWhoisClient(&fakeWhoisClient{err: boom}))
		res := p.Lookup(context.Background(), "example.com")
		if !errors.Is(res.Err, boom) {
			t.Errorf("Lookup() err = %v, want %v", res.Err, boom)
		}
	})

	t.Run("ip literal is skipped", func(t *testing.T) {
		t.Parallel()
		p := NewWhoisProbe(WithWhoisClient(&fakeWhoisClient{}))
		res := p.Lookup(context.Background(), "198.51.100.4")
		if !errors.Is(res.Err, ErrSkipped) {
			t.Errorf("Lookup() err = %v, want %v", res.Err, ErrSkipped)
		}
	})
}

func TestParseWhoisDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"1995-08-14T04:00:00Z", time.Date(1995, 8, 14, 4, 0, 0, 0, time.UTC), true},
		{"2020-01-02", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"02-Jan-2020", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"2020-01-02 03:04:05", time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseWhoisDate(tt.input)
			if ok != tt.ok || !got.Equal(tt.want) {
				t.Errorf("ParseWhoisDate(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAgeInDays(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := AgeInDays(created, created.Add(47*time.Hour)); got != 1 {
		t.Errorf("AgeInDays() = %d, want 1", got)
	}
	if got := AgeInDays(created, created.Add(-time.Hour)); got != -1 {
		t.Errorf("AgeInDays() for future creation = %d, want -1", got)
	}
}

func TestTLSProbeInspect(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	addr := srv.Listener.Addr().String()
	trusted := x509.NewCertPool()
	trusted.AddCert(srv.Certificate())

	t.Run("trusted certificate is valid", func(t *testing.T) {
		t.Parallel()
		res := NewTLSProbe(WithRootCAs(trusted)).Inspect(context.Background(), "127.0.0.1", addr)
		if !res.OK() {
			t.Fatalf("Inspect() error = %v", res.Err)
		}
		if !res.Value.Valid {
			t.Errorf("Valid = false, verify error %q", res.Value.VerifyError)
		}
		if res.Value.DaysRemaining <= 0 {
			t.Errorf("DaysRemaining = %d, want positive", res.Value.DaysRemaining)
		}
		if res.Value.Issuer == "" || res.Value.Protocol == "" || res.Value.Cipher == "" {
			t.Errorf("report missing details: %+v", res.Value)
		}
	})

	t.Run("untrusted certificate is inspected but invalid", func(t *testing.T) {
		t.Parallel()
		res := NewTLSProbe(WithRootCAs(x509.NewCertPool())).Inspect(context.Background(), "127.0.0.1", addr)
		if !res.OK() {
			t.Fatalf("Inspect() error = %v", res.Err)
		}
		if res.Value.Valid {
			t.Error("Valid = true for untrusted certificate")
		}
		if res.Value.VerifyError == "" {
			t.Error("VerifyError should explain the failure")
		}
	})

	t.Run("expired according to clock", func(t *testing.T) {
		t.Parallel()
		future := func() time.Time { return srv.Certificate().NotAfter.Add(48 * time.Hour) }
		res := NewTLSProbe(WithRootCAs(trusted), WithTLSClock(future)).Inspect(context.Background(), "127.0.0.1", addr)
		if !res.OK() {
			t.Fatalf("Inspect() error = %v", res.Err)
		}
		if res.Value.Valid || res.Value.DaysRemaining >= 0 {
			t.Errorf("Valid = %v, DaysRemaining = %d; want invalid and negative", res.Value.Valid, res.Value.DaysRemaining)
		}
	})

	t.Run("closed port fails", func(t *testing.T) {
		t.Parallel()
		res := NewTLSProbe(WithTLSTimeout(time.Second)).Inspect(context.Background(), "127.0.0.1", closedAddr(t))
		if res.OK() {
			t.Error("Inspect() succeeded against a closed port")
		}
	})
}

// closedAddr returns a loopback address with no listener.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return addr
}

func TestPortProberProbe(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	openPort := ln.Addr().(*net.TCPAddr).Port
	_, closedPortStr, _ := net.SplitHostPort(closedAddr(t))
	closedPort, _ := strconv.Atoi(closedPortStr)

	p := NewPortProber(WithPorts([]int{closedPort, openPort}), WithPortTimeout(time.Second))
	rep := p.Probe(context.Background(), "127.0.0.1")

	if !slices.Equal(rep.Open, []int{openPort}) {
		t.Errorf("Open = %v, want [%d]", rep.Open, openPort)
	}
	if !slices.Equal(rep.Weak, []int{openPort}) {
		t.Errorf("Weak = %v, want [%d]", rep.Weak, openPort)
	}
	if len(rep.Secure) != 0 {
		t.Errorf("Secure = %v, want empty", rep.Secure)
	}
}

// recordingDialer succeeds for a fixed set of ports and records every attempt.
type recordingDialer struct {
	open     map[string]bool
	attempts atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func (d *recordingDialer) DialContext(ctx context.Context, _, address string) (net.Conn, error) {
	d.attempts.Add(1)
	n := d.inflight.Add(1)
	defer d.inflight.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if d.open[address] {
		c1, c2 := net.Pipe()
		_ = c2.Close()
		return c1, nil
	}
	return nil, errors.New("connection refused")
}

func TestPortProberClassifiesDefaultPorts(t *testing.T) {
	t.Parallel()

	d := &recordingDialer{open: map[string]bool{
		"192.0.2.1:22":   true,
		"192.0.2.1:80":   true,
		"192.0.2.1:443":  true,
		"192.0.2.1:3389": true,
	}}
	rep := NewPortProber(WithDialer(d)).Probe(context.Background(), "192.0.2.1")

	if got := int(d.attempts.Load()); got != len(DefaultPorts) {
		t.Errorf("attempts = %d, want %d", got, len(DefaultPorts))
	}
	if d.peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, want ports probed concurrently", d.peak.Load())
	}
	if !slices.Equal(rep.Open, []int{22, 80, 443, 3389}) {
		t.Errorf("Open = %v", rep.Open)
	}
	if !slices.Equal(rep.Secure, []int{22, 443}) {
		t.Errorf("Secure = %v", rep.Secure)
	}
	if !slices.Equal(rep.Weak, []int{80, 3389}) {
		t.Errorf("Weak = %v", rep.Weak)
	}
}

func TestServiceName(t *testing.T) {
	t.Parallel()

	if got := ServiceName(3389); got != "RDP" {
		t.Errorf("ServiceName(3389) = %q", got)
	}
	if got := ServiceName(1); got != "unknown" {
		t.Errorf("ServiceName(1) = %q", got)
	}
	for _, p := range []int{22, 443, 8443} {
		if !IsSecurePort(p) {
			t.Errorf("IsSecurePort(%d) = false", p)
		}
	}
	if IsSecurePort(23) {
		t.Error("IsSecurePort(23) = true")
	}
}

type stubDNS struct{ res Result[string] }

func (s stubDNS) Lookup(context.Context, string) Result[string] { return s.res }

type stubWhois struct {
	res   Result[WhoisRecord]
	delay time.Duration
}

func (s stubWhois) Lookup(context.Context, string) Result[WhoisRecord] {
	time.Sleep(s.delay)
	return s.res
}

type stubTLS struct {
	res     Result[TLSReport]
	gotAddr *atomic.Value
	gotHost *atomic.Value
}

func (s stubTLS) Inspect(_ context.Context, host, addr string) Result[TLSReport] {
	if s.gotAddr != nil {
		s.gotAddr.Store(addr)
		s.gotHost.Store(host)
	}
	return s.res
}

type stubPorts struct {
	rep    PortReport
	called *atomic.Value
}

func (s stubPorts) Probe(_ context.Context, ip string) PortReport {
	if s.called != nil {
		s.called.Store(ip)
	}
	return s.rep
}

func TestGathererGather(t *testing.T) {
	t.Parallel()

	t.Run("joins all probe results", func(t *testing.T) {
		t.Parallel()
		age := 400
		var addr, host, scannedIP atomic.Value
		g := NewGatherer(
			WithDNS(stubDNS{res: Succeed("192.0.2.5")}),
			WithWhois(stubWhois{res: Succeed(WhoisRecord{Domain: "example.com", AgeDays: &age}), delay: 10 * time.Millisecond}),
			WithTLS(stubTLS{res: Succeed(TLSReport{Valid: true}), gotAddr: &addr, gotHost: &host}),
			WithPortScanner(stubPorts{rep: PortReport{Open: []int{443}, Secure: []int{443}, Weak: []int{}}, called: &scannedIP}),
		)

		intel := g.Gather(context.Background(), Target{Host: "example.com"})
		if !intel.DNS.OK() || !intel.Whois.OK() || !intel.TLS.OK() || !intel.Ports.OK() {
			t.Fatalf("expected all probes to succeed: %+v", intel)
		}
		if addr.Load() != "example.com:443" || host.Load() != "example.com" {
			t.Errorf("tls probed %v / %v", host.Load(), addr.Load())
		}
		if scannedIP.Load() != "192.0.2.5" {
			t.Errorf("ports scanned %v, want resolved ip", scannedIP.Load())
		}
		if *intel.Whois.Value.AgeDays != 400 {
			t.Errorf("AgeDays = %d", *intel.Whois.Value.AgeDays)
		}
	})

	t.Run("dns failure skips ports but not siblings", func(t *testing.T) {
		t.Parallel()
		var scanned atomic.Value
		g := NewGatherer(
			WithDNS(stubDNS{res: Fail[string](errors.New("no such host"))}),
			WithWhois(stubWhois{res: Fail[WhoisRecord](errors.New("whois down"))}),
			WithTLS(stubTLS{res: Succeed(TLSReport{Valid: true})}),
			WithPortScanner(stubPorts{called: &scanned}),
		)

		intel := g.Gather(context.Background(), Target{Host: "example.com", TLSPort: 8443})
		if intel.DNS.OK() || intel.Whois.OK() {
			t.Error("dns and whois should have failed")
		}
		if !intel.TLS.OK() {
			t.Error("tls should succeed despite sibling failures")
		}
		if !errors.Is(intel.Ports.Err, ErrSkipped) {
			t.Errorf("Ports.Err = %v, want %v", intel.Ports.Err, ErrSkipped)
		}
		if scanned.Load() != nil {
			t.Error("port scanner should not run without an address")
		}
	})
}
