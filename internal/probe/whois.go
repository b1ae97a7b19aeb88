package probe

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"golang.org/x/net/publicsuffix"
)

// DefaultWhoisTimeout bounds a WHOIS query including referrals.
const DefaultWhoisTimeout = 10 * time.Second

// WhoisClient performs a raw WHOIS query. *whois.Client satisfies it.
type WhoisClient interface {
	Whois(domain string, servers ...string) (string, error)
}

// WhoisRecord is the registration data extracted from a WHOIS response.
type WhoisRecord struct {
	// Domain is the registrable domain that was queried.
	Domain string

	// Registrar is the registrar name, empty when the record has none.
	Registrar string

	// CreatedAt is the registration date. Nil when missing or unparsable.
	CreatedAt *time.Time

	// AgeDays is the whole number of days since CreatedAt. Nil when CreatedAt is nil.
	AgeDays *int
}

// WhoisProbe looks up registration data for the registrable domain of a host.
type WhoisProbe struct {
	client  WhoisClient
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// WhoisOption configures a WhoisProbe.
type WhoisOption func(*WhoisProbe)

// WithWhoisClient replaces the WHOIS client.
func WithWhoisClient(c WhoisClient) WhoisOption {
	return func(p *WhoisProbe) {
		p.client = c
	}
}

// WithWhoisTimeout sets the query timeout.
func WithWhoisTimeout(d time.Duration) WhoisOption {
	return func(p *WhoisProbe) {
		p.timeout = d
	}
}

// WithWhoisClock replaces time.Now for age computation.
func WithWhoisClock(now func() time.Time) WhoisOption {
	return func(p *WhoisProbe) {
		p.now = now
	}
}

// WithWhoisLogger sets the logger.
func WithWhoisLogger(logger *slog.Logger) WhoisOption {
	return func(p *WhoisProbe) {
		p.logger = logger
	}
}

// NewWhoisProbe creates a WhoisProbe backed by github.com/likexian/whois.
func NewWhoisProbe(opts ...WhoisOption) *WhoisProbe {
	p := &WhoisProbe{
		timeout: DefaultWhoisTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = whois.NewClient().SetTimeout(p.timeout)
	}
	return p
}

// Lookup queries WHOIS for host.
//
// A record whose creation date is missing or unparsable is still returned,
// with CreatedAt and AgeDays left nil; the age is never assumed to be zero.
func (p *WhoisProbe) Lookup(ctx context.Context, host string) Result[WhoisRecord] {
	if net.ParseIP(host) != nil {
		return Fail[WhoisRecord](fmt.Errorf("whois %s: %w: ip address has no registration", host, ErrSkipped))
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.TrimSuffix(host, "."))
	if err != nil {
		return Fail[WhoisRecord](fmt.Errorf("whois %s: %w", host, err))
	}

	raw, err := p.query(ctx, domain)
	if err != nil {
		p.logger.Debug("whois query failed", "domain", domain, "error", err)
		return Fail[WhoisRecord](fmt.Errorf("whois %s: %w", domain, err))
	}

	info, err := whoisparser.Parse(raw)
	if err != nil {
		p.logger.Debug("whois parse failed", "domain", domain, "error", err)
		return Fail[WhoisRecord](fmt.Errorf("parse whois for %s: %w", domain, err))
	}

	rec := WhoisRecord{Domain: domain}
	if info.Registrar != nil {
		rec.Registrar = strings.TrimSpace(info.Registrar.Name)
	}
	if info.Domain != nil {
		if created, ok := ParseWhoisDate(info.Domain.CreatedDate); ok {
			rec.CreatedAt = &created
			age := AgeInDays(created, p.now())
			rec.AgeDays = &age
		}
	}
	return Succeed(rec)
}

// query runs the blocking WHOIS client call and gives up when ctx ends.
func (p *WhoisProbe) query(ctx context.Context, domain string) (string, error) {
	type reply struct {
		text string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		text, err := p.client.Whois(domain)
		ch <- reply{text: text, err: err}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// whoisDateLayouts covers the creation date formats used by common registries.
var whoisDateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"02-Jan-2006",
	"02.01.2006",
	"January 2 2006",
	"Mon Jan 2 15:04:05 MST 2006",
}

// ParseWhoisDate parses a WHOIS date string. The second return value is false
// when no known layout matches.
func ParseWhoisDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// AgeInDays returns floor((now - created) / 24h).
func AgeInDays(created, now time.Time) int {
	return int(math.Floor(float64(now.Sub(created)) / float64(24*time.Hour)))
}
