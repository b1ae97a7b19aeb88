package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSeverityString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityLow, "low"},
		{SeverityMedium, "medium"},
		{SeverityHigh, "high"},
		{Severity(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	if SeverityLow >= SeverityMedium || SeverityMedium >= SeverityHigh {
		t.Error("severities must be ordered low < medium < high")
	}
}

func TestFindingJSON(t *testing.T) {
	t.Parallel()

	f := Finding{Severity: SeverityHigh, Title: "Invalid TLS certificate", Description: "expired"}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"severity":"high","title":"Invalid TLS certificate","description":"expired"}`
	if string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}

	var back Finding
	if err := json.Unmarshal([]byte(`{"severity":"MEDIUM","title":"x"}`), &back); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if back.Severity != SeverityMedium {
		t.Errorf("Severity = %v, want medium", back.Severity)
	}

	err = json.Unmarshal([]byte(`{"severity":"critical"}`), &back)
	if !errors.Is(err, ErrUnknownSeverity) {
		t.Errorf("unmarshal unknown severity error = %v, want %v", err, ErrUnknownSeverity)
	}
}

func TestLevelForScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score int
		want  ThreatLevel
	}{
		{0, ThreatSafe},
		{3, ThreatSafe},
		{4, ThreatSuspicious},
		{6, ThreatSuspicious},
		{7, ThreatDangerous},
		{10, ThreatDangerous},
	}

	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestThreatLevelRank(t *testing.T) {
	t.Parallel()

	if !ThreatDangerous.AtLeast(ThreatSuspicious) {
		t.Error("dangerous should be at least suspicious")
	}
	if ThreatSafe.AtLeast(ThreatSuspicious) {
		t.Error("safe should not be at least suspicious")
	}
	if _, err := ParseThreatLevel("Dangerous"); err != nil {
		t.Errorf("ParseThreatLevel() error = %v", err)
	}
	if _, err := ParseThreatLevel("bogus"); !errors.Is(err, ErrUnknownThreatLevel) {
		t.Errorf("ParseThreatLevel(bogus) error = %v, want %v", err, ErrUnknownThreatLevel)
	}
}
