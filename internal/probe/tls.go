package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultTLSTimeout bounds the TLS handshake.
const DefaultTLSTimeout = 10 * time.Second

// TLSReport describes the certificate and session negotiated with a host.
type TLSReport struct {
	// Valid is true when the chain verifies for the host and the leaf is within its validity period.
	Valid bool

	// VerifyError explains why Valid is false.
	VerifyError string

	// DaysRemaining is floor((NotAfter - now) / 24h). Negative when expired.
	DaysRemaining int

	// Issuer is the issuer organization, or the issuer common name when no organization is set.
	Issuer string

	// Subject is the leaf common name.
	Subject string

	// NotBefore and NotAfter bound the leaf validity period.
	NotBefore time.Time
	NotAfter  time.Time

	// Protocol is the negotiated version, for example "TLS 1.3".
	Protocol string

	// Cipher is the negotiated cipher suite name.
	Cipher string

	// Legacy is true when TLS 1.1 or older was negotiated.
	Legacy bool
}

// TLSProbe connects to a host and inspects the certificate it presents.
//
// The handshake itself never verifies the chain so that invalid certificates
// can still be inspected; verification runs afterwards against the
// configured roots.
type TLSProbe struct {
	timeout time.Duration
	roots   *x509.CertPool
	now     func() time.Time
	logger  *slog.Logger
}

// TLSOption configures a TLSProbe.
type TLSOption func(*TLSProbe)

// WithTLSTimeout sets the handshake timeout.
func WithTLSTimeout(d time.Duration) TLSOption {
	return func(p *TLSProbe) {
		p.timeout = d
	}
}

// WithRootCAs sets the roots used for verification. Nil means the system pool.
func WithRootCAs(pool *x509.CertPool) TLSOption {
	return func(p *TLSProbe) {
		p.roots = pool
	}
}

// WithTLSClock replaces time.Now.
func WithTLSClock(now func() time.Time) TLSOption {
	return func(p *TLSProbe) {
		p.now = now
	}
}

// WithTLSLogger sets the logger.
func WithTLSLogger(logger *slog.Logger) TLSOption {
	return func(p *TLSProbe) {
		p.logger = logger
	}
}

// NewTLSProbe creates a TLSProbe.
func NewTLSProbe(opts ...TLSOption) *TLSProbe {
	p := &TLSProbe{
		timeout: DefaultTLSTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inspect performs a TLS handshake with host at addr ("ip:port" or "host:port")
// using host as the server name.
func (p *TLSProbe) Inspect(ctx context.Context, host, addr string) Result[TLSReport] {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: p.timeout},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true, //nolint:gosec // verification runs explicitly in verify
			MinVersion:         tls.VersionTLS10,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		p.logger.Debug("tls handshake failed", "host", host, "addr", addr, "error", err)
		return Fail[TLSReport](fmt.Errorf("tls handshake with %s: %w", addr, err))
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return Fail[TLSReport](fmt.Errorf("tls handshake with %s: unexpected connection type %T", addr, conn))
	}
	return p.report(host, tlsConn.ConnectionState())
}

// report builds a TLSReport from a completed handshake.
func (p *TLSProbe) report(host string, state tls.ConnectionState) Result[TLSReport] {
	if len(state.PeerCertificates) == 0 {
		return Fail[TLSReport](ErrNoCertificate)
	}

	now := p.now()
	leaf := state.PeerCertificates[0]
	rep := TLSReport{
		DaysRemaining: daysUntil(now, leaf.NotAfter),
		Issuer:        issuerName(leaf),
		Subject:       leaf.Subject.CommonName,
		NotBefore:     leaf.NotBefore,
		NotAfter:      leaf.NotAfter,
		Protocol:      tls.VersionName(state.Version),
		Cipher:        tls.CipherSuiteName(state.CipherSuite),
		Legacy:        state.Version < tls.VersionTLS12,
	}

	if err := p.verify(host, now, state.PeerCertificates); err != nil {
		rep.VerifyError = err.Error()
	} else {
		rep.Valid = true
	}
	return Succeed(rep)
}

func (p *TLSProbe) verify(host string, now time.Time, chain []*x509.Certificate) error {
	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}
	_, err := chain[0].Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         p.roots,
		Intermediates: intermediates,
		CurrentTime:   now,
	})
	return err
}

func issuerName(cert *x509.Certificate) string {
	if len(cert.Issuer.Organization) > 0 {
		return strings.Join(cert.Issuer.Organization, ", ")
	}
	return cert.Issuer.CommonName
}

func daysUntil(now, t time.Time) int {
	return int(math.Floor(float64(t.Sub(now)) / float64(24*time.Hour)))
}

// HostPort joins host and port, bracketing IPv6 literals.
func HostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
