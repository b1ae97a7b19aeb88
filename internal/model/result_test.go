package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewScanResultDefaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewScanResult("https://example.com", now)

	t.Run("sets url and final url", func(t *testing.T) {
		t.Parallel()
		if r.URL != "https://example.com" || r.FinalURL != r.URL {
			t.Errorf("URL = %q, FinalURL = %q", r.URL, r.FinalURL)
		}
	})

	t.Run("starts with a perfect security score and safe verdict", func(t *testing.T) {
		t.Parallel()
		if r.Security.Score != MaxSecurityScore {
			t.Errorf("Security.Score = %d, want %d", r.Security.Score, MaxSecurityScore)
		}
		if r.ThreatLevel != ThreatSafe || r.ThreatScore != 0 || r.Confidence != FullConfidence {
			t.Errorf("verdict = %q/%d/%d", r.ThreatLevel, r.ThreatScore, r.Confidence)
		}
	})

	t.Run("is not degraded", func(t *testing.T) {
		t.Parallel()
		if r.Degraded() {
			t.Error("new result should not be degraded")
		}
	})

	t.Run("serializes every collection as an empty array or object", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		var generic map[string]any
		if err := json.Unmarshal(data, &generic); err != nil {
			t.Fatalf("json.Unmarshal() error = %v", err)
		}
		for _, key := range []string{"technologies", "indicators", "recommendations"} {
			if _, ok := generic[key].([]any); !ok {
				t.Errorf("%s = %v, want empty array", key, generic[key])
			}
		}
		domain, ok := generic["domain"].(map[string]any)
		if !ok {
			t.Fatalf("domain = %v, want object", generic["domain"])
		}
		for _, key := range []string{"ageDays", "registrar", "ip"} {
			v, present := domain[key]
			if !present || v != nil {
				t.Errorf("domain.%s = %v (present %v), want null", key, v, present)
			}
		}
		if _, present := generic["error"]; present {
			t.Error("error should be omitted for a completed scan")
		}
	})
}

func TestScanResultClone(t *testing.T) {
	t.Parallel()

	orig := NewScanResult("https://example.com", time.Now())
	orig.Domain.AgeDays = Ptr(12)
	orig.Security.Headers["x-frame-options"] = "DENY"
	orig.Indicators = append(orig.Indicators, "New Domain")
	orig.Security.Ports.Open = append(orig.Security.Ports.Open, 22)

	c := orig.Clone()
	*c.Domain.AgeDays = 99
	c.Security.Headers["x-frame-options"] = "ALLOW"
	c.Indicators[0] = "changed"
	c.Security.Ports.Open[0] = 23

	if *orig.Domain.AgeDays != 12 {
		t.Errorf("AgeDays changed through clone: %d", *orig.Domain.AgeDays)
	}
	if orig.Security.Headers["x-frame-options"] != "DENY" {
		t.Error("headers map shared with clone")
	}
	if orig.Indicators[0] != "New Domain" {
		t.Error("indicators shared with clone")
	}
	if orig.Security.Ports.Open[0] != 22 {
		t.Error("ports shared with clone")
	}

	var nilResult *ScanResult
	if nilResult.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestCookieStatsInsecure(t *testing.T) {
	t.Parallel()

	if got := (CookieStats{Secure: 1, Total: 4}).Insecure(); got != 3 {
		t.Errorf("Insecure() = %d, want 3", got)
	}
	if got := (CookieStats{}).Insecure(); got != 0 {
		t.Errorf("Insecure() = %d, want 0", got)
	}
}
