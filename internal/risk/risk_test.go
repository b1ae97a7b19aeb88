package risk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/urlrisk/internal/model"
	"github.com/nao1215/urlrisk/internal/posture"
)

// cleanResult returns a result with no risk signals.
func cleanResult() *model.ScanResult {
	r := model.NewScanResult("https://example.com", time.Now())
	r.Domain.AgeDays = model.Ptr(1000)
	r.Security.SSL = model.SSLInfo{Valid: true, DaysRemaining: 200}
	r.Security.HeadersAnalysis.Present = []string{headerHSTS, headerCSP, "x-frame-options", "x-content-type-options"}
	return r
}

func TestAggregateCleanResultIsSafe(t *testing.T) {
	t.Parallel()

	v := Aggregate(cleanResult())
	if v.Score != 0 || v.Level != model.ThreatSafe {
		t.Errorf("verdict = %d/%s, want 0/safe", v.Score, v.Level)
	}
	if len(v.Indicators) != 0 {
		t.Errorf("Indicators = %v, want none", v.Indicators)
	}
	if len(v.Recommendations) != 1 || v.Recommendations[0] != defaultRecommendation {
		t.Errorf("Recommendations = %v", v.Recommendations)
	}
}

func TestAggregateNewDomainInvalidTLSLoginIsDangerous(t *testing.T) {
	t.Parallel()

	r := cleanResult()
	r.Domain.AgeDays = model.Ptr(10)
	r.Security.SSL.Valid = false
	r.Page.HasLoginForm = true

	v := Aggregate(r)
	if v.Score != model.MaxThreatScore {
		t.Errorf("Score = %d, want %d (4+3+5 capped)", v.Score, model.MaxThreatScore)
	}
	if v.Level != model.ThreatDangerous {
		t.Errorf("Level = %s, want dangerous", v.Level)
	}
	if !strings.HasPrefix(v.Indicators[0], "New Domain") {
		t.Errorf("first indicator = %q, want New Domain", v.Indicators[0])
	}
}

func TestAggregateSignals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*model.ScanResult)
		want   int
	}{
		{"new domain", func(r *model.ScanResult) { r.Domain.AgeDays = model.Ptr(29) }, 4},
		{"domain at 30 days is not new", func(r *model.ScanResult) { r.Domain.AgeDays = model.Ptr(30) }, 0},
		{"invalid tls", func(r *model.ScanResult) { r.Security.SSL.Valid = false }, 3},
		{"tls expiring within a week", func(r *model.ScanResult) { r.Security.SSL.DaysRemaining = 6 }, 2},
		{"tls expiring within a month is not a threat signal", func(r *model.ScanResult) { r.Security.SSL.DaysRemaining = 20 }, 0},
		{"login form on young domain", func(r *model.ScanResult) {
			r.Domain.AgeDays = model.Ptr(60)
			r.Page.HasLoginForm = true
		}, 5},
		{"login form on old domain", func(r *model.ScanResult) { r.Page.HasLoginForm = true }, 0},
		{"login form with unknown age", func(r *model.ScanResult) {
			r.Domain.AgeDays = nil
			r.Page.HasLoginForm = true
		}, 0},
		{"missing hsts and csp", func(r *model.ScanResult) {
			r.Security.HeadersAnalysis.Missing = []string{headerHSTS, headerCSP, "x-frame-options"}
		}, 4},
		{"insecure cookies", func(r *model.ScanResult) {
			r.Security.Cookies = model.CookieStats{Secure: 1, Total: 3}
		}, 4},
		{"mixed content", func(r *model.ScanResult) { r.Security.MixedContent.Count = 2 }, 6},
		{"weak ports", func(r *model.ScanResult) { r.Security.Ports.Weak = []int{21, 3306} }, 4},
		{"findings", func(r *model.ScanResult) {
			r.Security.Vulnerabilities = []model.Finding{{Title: "a"}, {Title: "b"}, {Title: "c"}}
		}, 6},
		{"many external links", func(r *model.ScanResult) {
			r.Page.ExternalLinks = make([]string, 11)
		}, 1},
		{"ten external links", func(r *model.ScanResult) {
			r.Page.ExternalLinks = make([]string, 10)
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := cleanResult()
			tt.mutate(r)
			v := Aggregate(r)
			if v.Score != tt.want {
				t.Errorf("Score = %d, want %d (indicators %v)", v.Score, tt.want, v.Indicators)
			}
			if v.Level != model.LevelForScore(v.Score) {
				t.Errorf("Level = %s inconsistent with score %d", v.Level, v.Score)
			}
			if (tt.want > 0) != (len(v.Indicators) > 0) {
				t.Errorf("Indicators = %v for score %d", v.Indicators, v.Score)
			}
		})
	}
}

// assessed runs the posture analysis on r the way the scan pipeline does
// and returns the resulting verdict.
func assessed(r *model.ScanResult, in posture.Input) Verdict {
	a := posture.Analyze(in)
	r.Security.HeadersAnalysis = a.HeadersAnalysis
	r.Security.Cookies = a.Cookies
	r.Security.Vulnerabilities = a.Vulnerabilities
	r.Security.Score = a.Score
	return Aggregate(r)
}

func TestAggregateAfterPostureCountsEachSignalOnce(t *testing.T) {
	t.Parallel()

	headers := map[string]string{
		posture.HeaderHSTS:              "max-age=31536000",
		posture.HeaderCSP:               "default-src 'self'",
		posture.HeaderFrameOptions:      "DENY",
		posture.HeaderContentTypeOpts:   "nosniff",
		posture.HeaderReferrerPolicy:    "no-referrer",
		posture.HeaderPermissionsPolicy: "camera=()",
		posture.HeaderXSSProtection:     "0",
	}

	tests := []struct {
		name      string
		mutate    func(*model.ScanResult)
		wantScore int
		wantLevel model.ThreatLevel
	}{
		{"clean", func(*model.ScanResult) {}, 0, model.ThreatSafe},
		{"invalid certificate", func(r *model.ScanResult) { r.Security.SSL.Valid = false }, 3, model.ThreatSafe},
		{"mysql port open", func(r *model.ScanResult) { r.Security.Ports.Weak = []int{3306} }, 2, model.ThreatSafe},
		{"invalid certificate and rdp open", func(r *model.ScanResult) {
			r.Security.SSL.Valid = false
			r.Security.Ports.Weak = []int{3389}
		}, 5, model.ThreatSuspicious},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := cleanResult()
			tt.mutate(r)
			v := assessed(r, posture.Input{
				Headers:       headers,
				SSL:           r.Security.SSL,
				WeakPorts:     r.Security.Ports.Weak,
				DomainAgeDays: r.Domain.AgeDays,
			})
			if v.Score != tt.wantScore || v.Level != tt.wantLevel {
				t.Errorf("verdict = %d/%s, want %d/%s (indicators %v)",
					v.Score, v.Level, tt.wantScore, tt.wantLevel, v.Indicators)
			}
			for _, ind := range v.Indicators {
				if strings.HasPrefix(ind, "Security weakness") {
					t.Errorf("indicator %q repeats a scored signal", ind)
				}
			}
		})
	}
}

func TestAggregateIsMonotonicAndClamped(t *testing.T) {
	t.Parallel()

	steps := []func(*model.ScanResult){
		func(r *model.ScanResult) { r.Page.ExternalLinks = make([]string, 15) },
		func(r *model.ScanResult) { r.Security.HeadersAnalysis.Missing = []string{headerHSTS} },
		func(r *model.ScanResult) { r.Security.Cookies = model.CookieStats{Total: 1} },
		func(r *model.ScanResult) { r.Security.Ports.Weak = []int{23} },
		func(r *model.ScanResult) { r.Security.MixedContent.Count = 4 },
		func(r *model.ScanResult) { r.Domain.AgeDays = model.Ptr(3) },
		func(r *model.ScanResult) { r.Security.SSL.Valid = false },
		func(r *model.ScanResult) { r.Page.HasLoginForm = true },
	}

	r := cleanResult()
	prev := Aggregate(r).Score
	for i, step := range steps {
		step(r)
		got := Aggregate(r).Score
		if got < prev {
			t.Fatalf("step %d lowered score from %d to %d", i, prev, got)
		}
		if got < 0 || got > model.MaxThreatScore {
			t.Fatalf("step %d score %d out of range", i, got)
		}
		prev = got
	}
	if prev != model.MaxThreatScore {
		t.Errorf("final score = %d, want %d", prev, model.MaxThreatScore)
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	r := cleanResult()
	r.Security.MixedContent.Count = 2
	r.Confidence = 0
	Apply(r)

	if r.ThreatScore != 6 || r.ThreatLevel != model.ThreatSuspicious || r.Confidence != 100 {
		t.Errorf("verdict = %d/%s/%d", r.ThreatScore, r.ThreatLevel, r.Confidence)
	}
	if len(r.Indicators) != 1 || r.Indicators[0] != "2 mixed content resources" {
		t.Errorf("Indicators = %v", r.Indicators)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	tests := []struct {
		name      string
		err       error
		wantLevel model.ThreatLevel
		wantScore int
	}{
		{
			name:      "dns failure",
			err:       &net.DNSError{Err: "no such host", Name: "paypa1-login.example", IsNotFound: true},
			wantLevel: model.ThreatDangerous,
			wantScore: 9,
		},
		{
			name:      "connection refused",
			err:       fmt.Errorf("navigate: %w", model.ErrConnectionRefused),
			wantLevel: model.ThreatSuspicious,
			wantScore: 6,
		},
		{
			name:      "timeout",
			err:       fmt.Errorf("navigate: %w", context.DeadlineExceeded),
			wantLevel: model.ThreatSuspicious,
			wantScore: 4,
		},
		{
			name:      "other",
			err:       errors.New("chrome exited unexpectedly"),
			wantLevel: model.ThreatSuspicious,
			wantScore: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := Classify("https://paypa1-login.example", tt.err, now)
			if r.ThreatLevel != tt.wantLevel || r.ThreatScore != tt.wantScore {
				t.Errorf("verdict = %s/%d, want %s/%d", r.ThreatLevel, r.ThreatScore, tt.wantLevel, tt.wantScore)
			}
			if r.Confidence != 100 {
				t.Errorf("Confidence = %d, want 100", r.Confidence)
			}
			if !r.Degraded() || r.Error != tt.err.Error() {
				t.Errorf("Error = %q, want %q", r.Error, tt.err.Error())
			}
			if len(r.Indicators) == 0 || len(r.Recommendations) == 0 {
				t.Error("degraded result needs indicators and recommendations")
			}
			if r.Domain.Name != "paypa1-login.example" || !r.ScanDate.Equal(now) {
				t.Errorf("Domain.Name = %q, ScanDate = %v", r.Domain.Name, r.ScanDate)
			}
			if r.Technologies == nil || r.Security.Headers == nil {
				t.Error("degraded result must keep every collection initialized")
			}
		})
	}

	t.Run("dns failure indicators mention typosquatting", func(t *testing.T) {
		t.Parallel()
		r := Classify("https://x.invalid", model.ErrNameNotResolved, now)
		joined := strings.Join(r.Indicators, " ")
		if !strings.Contains(strings.ToLower(joined), "typosquatting") {
			t.Errorf("Indicators = %v", r.Indicators)
		}
	})

	t.Run("nil error is a generic failure", func(t *testing.T) {
		t.Parallel()
		r := Classify("https://example.com", nil, now)
		if r.ThreatScore != 5 || r.Error != model.ErrScanFailed.Error() {
			t.Errorf("verdict = %d, Error = %q", r.ThreatScore, r.Error)
		}
	})
}
