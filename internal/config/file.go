package config

import (
	"strings"
	"time"
)

// File is the structure of the urlrisk YAML configuration file.
type File struct {
	// Defaults override the built-in defaults for every scan.
	Defaults Settings `yaml:"defaults,omitempty"`

	// Hosts maps a host name to overrides for that host and its subdomains.
	// Keys are matched case-insensitively without a port.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`
}

// Settings are the file counterparts of Config fields. Zero values and nil
// pointers leave the corresponding Config field unchanged.
type Settings struct {
	NavigationTimeout time.Duration `yaml:"navigationTimeout,omitempty"`
	IdleTimeout       time.Duration `yaml:"idleTimeout,omitempty"`
	PortTimeout       time.Duration `yaml:"portTimeout,omitempty"`
	DNSTimeout        time.Duration `yaml:"dnsTimeout,omitempty"`
	WhoisTimeout      time.Duration `yaml:"whoisTimeout,omitempty"`
	TLSTimeout        time.Duration `yaml:"tlsTimeout,omitempty"`
	CaptureRetries    *int          `yaml:"captureRetries,omitempty"`
	RetryBackoff      time.Duration `yaml:"retryBackoff,omitempty"`
	CacheSize         int           `yaml:"cacheSize,omitempty"`
	CacheEvictBatch   int           `yaml:"cacheEvictBatch,omitempty"`
	CacheTTL          time.Duration `yaml:"cacheTTL,omitempty"`
	Concurrency       int           `yaml:"concurrency,omitempty"`
	Headless          *bool         `yaml:"headless,omitempty"`
	UserAgent         string        `yaml:"userAgent,omitempty"`
	ChromePath        string        `yaml:"chromePath,omitempty"`
	Screenshot        *bool         `yaml:"screenshot,omitempty"`
	DBDir             string        `yaml:"dbDir,omitempty"`
	SaveHistory       *bool         `yaml:"saveHistory,omitempty"`
	HistoryRetention  time.Duration `yaml:"historyRetention,omitempty"`
	ServerAddr        string        `yaml:"serverAddr,omitempty"`
	RateLimit         float64       `yaml:"rateLimit,omitempty"`
	RateBurst         int           `yaml:"rateBurst,omitempty"`
}

// HostConfig holds overrides for scans of one host.
type HostConfig struct {
	// Screenshot disables or enables the screenshot for this host.
	Screenshot *bool `yaml:"screenshot,omitempty"`

	// NavigationTimeout replaces the global navigation timeout.
	NavigationTimeout time.Duration `yaml:"navigationTimeout,omitempty"`
}

// Apply copies the file defaults onto cfg.
func (f *File) Apply(cfg *Config) {
	if f == nil {
		return
	}
	s := f.Defaults

	setDuration(&cfg.NavigationTimeout, s.NavigationTimeout)
	setDuration(&cfg.IdleTimeout, s.IdleTimeout)
	setDuration(&cfg.PortTimeout, s.PortTimeout)
	setDuration(&cfg.DNSTimeout, s.DNSTimeout)
	setDuration(&cfg.WhoisTimeout, s.WhoisTimeout)
	setDuration(&cfg.TLSTimeout, s.TLSTimeout)
	setDuration(&cfg.RetryBackoff, s.RetryBackoff)
	setDuration(&cfg.CacheTTL, s.CacheTTL)
	setDuration(&cfg.HistoryRetention, s.HistoryRetention)

	if s.CaptureRetries != nil {
		cfg.CaptureRetries = *s.CaptureRetries
	}
	if s.CacheSize != 0 {
		cfg.CacheSize = s.CacheSize
	}
	if s.CacheEvictBatch != 0 {
		cfg.CacheEvictBatch = s.CacheEvictBatch
	}
	if s.Concurrency != 0 {
		cfg.Concurrency = s.Concurrency
	}
	if s.Headless != nil {
		cfg.Headless = *s.Headless
	}
	if s.UserAgent != "" {
		cfg.UserAgent = s.UserAgent
	}
	if s.ChromePath != "" {
		cfg.ChromePath = s.ChromePath
	}
	if s.Screenshot != nil {
		cfg.Screenshot = *s.Screenshot
	}
	if s.DBDir != "" {
		cfg.DBDir = s.DBDir
	}
	if s.SaveHistory != nil {
		cfg.SaveHistory = *s.SaveHistory
	}
	if s.ServerAddr != "" {
		cfg.ServerAddr = s.ServerAddr
	}
	if s.RateLimit != 0 {
		cfg.RateLimit = s.RateLimit
	}
	if s.RateBurst != 0 {
		cfg.RateBurst = s.RateBurst
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// Host returns the overrides for host. The most specific entry wins:
// "login.example.com" is checked before "example.com".
func (f *File) Host(host string) HostConfig {
	if f == nil || len(f.Hosts) == 0 {
		return HostConfig{}
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")

	for name := host; name != ""; {
		for key, hc := range f.Hosts {
			if strings.EqualFold(strings.TrimSuffix(key, "."), name) {
				return hc
			}
		}
		i := strings.IndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[i+1:]
	}
	return HostConfig{}
}

// DefaultFileContent is written by `urlrisk init`.
const DefaultFileContent = `# urlrisk configuration
#
# Values under "defaults" replace the built-in defaults. Command line
# flags still take precedence.
defaults:
  navigationTimeout: 60s
  idleTimeout: 5s
  portTimeout: 2s
  dnsTimeout: 5s
  whoisTimeout: 10s
  tlsTimeout: 10s
  captureRetries: 3
  retryBackoff: 1s
  cacheSize: 50
  cacheEvictBatch: 10
  cacheTTL: 15m
  concurrency: 2
  headless: true
  screenshot: true
  saveHistory: true
  historyRetention: 720h
  serverAddr: 127.0.0.1:8080
  rateLimit: 1
  rateBurst: 5

# Per-host overrides. An entry also applies to subdomains.
# hosts:
#   slow.example.com:
#     navigationTimeout: 120s
#   example.org:
#     screenshot: false
`
