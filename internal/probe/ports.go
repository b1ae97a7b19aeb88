package probe

import (
	"context"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultPortTimeout bounds each TCP connect attempt.
const DefaultPortTimeout = 2 * time.Second

// DefaultPorts is the fixed list of well-known ports probed on every host.
var DefaultPorts = []int{21, 22, 23, 25, 53, 80, 110, 143, 443, 445, 1433, 3306, 3389, 5432, 8080, 8443}

// securePorts are ports conventionally carrying encrypted traffic.
// Every other open port is reported as weak.
var securePorts = map[int]bool{22: true, 443: true, 8443: true}

// serviceNames maps probed ports to the service usually found there.
var serviceNames = map[int]string{
	21:   "FTP",
	22:   "SSH",
	23:   "Telnet",
	25:   "SMTP",
	53:   "DNS",
	80:   "HTTP",
	110:  "POP3",
	143:  "IMAP",
	443:  "HTTPS",
	445:  "SMB",
	1433: "MSSQL",
	3306: "MySQL",
	3389: "RDP",
	5432: "PostgreSQL",
	8080: "HTTP-Alt",
	8443: "HTTPS-Alt",
}

// IsSecurePort reports whether port is classified as secure.
func IsSecurePort(port int) bool {
	return securePorts[port]
}

// ServiceName returns the conventional service for port, or "unknown".
func ServiceName(port int) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return "unknown"
}

// PortReport lists the open ports of one address, split by classification.
// All slices are sorted ascending.
type PortReport struct {
	Open   []int
	Weak   []int
	Secure []int
}

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// PortProber checks reachability of a fixed port set with TCP connects.
type PortProber struct {
	ports   []int
	timeout time.Duration
	dialer  Dialer
	logger  *slog.Logger
}

// PortOption configures a PortProber.
type PortOption func(*PortProber)

// WithPorts replaces the probed port list.
func WithPorts(ports []int) PortOption {
	return func(p *PortProber) {
		p.ports = slices.Clone(ports)
	}
}

// WithPortTimeout sets the per-port connect timeout.
func WithPortTimeout(d time.Duration) PortOption {
	return func(p *PortProber) {
		p.timeout = d
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) PortOption {
	return func(p *PortProber) {
		p.dialer = d
	}
}

// WithPortLogger sets the logger.
func WithPortLogger(logger *slog.Logger) PortOption {
	return func(p *PortProber) {
		p.logger = logger
	}
}

// NewPortProber creates a PortProber for DefaultPorts.
func NewPortProber(opts ...PortOption) *PortProber {
	p := &PortProber{
		ports:   slices.Clone(DefaultPorts),
		timeout: DefaultPortTimeout,
		dialer:  &net.Dialer{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe attempts a TCP connect to every configured port of ip concurrently.
// A port is open when the connect succeeds within the timeout; any error
// marks it closed without affecting the other ports.
func (p *PortProber) Probe(ctx context.Context, ip string) PortReport {
	var (
		mu   sync.Mutex
		open []int
	)

	var g errgroup.Group
	for _, port := range p.ports {
		g.Go(func() error {
			if p.isOpen(ctx, ip, port) {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	return classify(open)
}

func (p *PortProber) isOpen(ctx context.Context, ip string, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", HostPort(ip, port))
	if err != nil {
		return false
	}
	_ = conn.Close()
	p.logger.Debug("port open", "ip", ip, "port", port, "service", ServiceName(port))
	return true
}

func classify(open []int) PortReport {
	slices.Sort(open)
	rep := PortReport{Open: []int{}, Weak: []int{}, Secure: []int{}}
	for _, port := range open {
		rep.Open = append(rep.Open, port)
		if IsSecurePort(port) {
			rep.Secure = append(rep.Secure, port)
		} else {
			rep.Weak = append(rep.Weak, port)
		}
	}
	return rep
}
