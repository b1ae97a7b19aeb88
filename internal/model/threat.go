package model

import (
	"fmt"
	"strings"
)

// ThreatLevel is the coarse verdict bucket of a scan.
type ThreatLevel string

const (
	// ThreatSafe means no meaningful risk indicators were observed.
	ThreatSafe ThreatLevel = "safe"
	// ThreatSuspicious means the URL shows several risk indicators.
	ThreatSuspicious ThreatLevel = "suspicious"
	// ThreatDangerous means the URL should not be visited.
	ThreatDangerous ThreatLevel = "dangerous"
)

// Rank orders threat levels from safe (0) to dangerous (2).
// Unknown levels rank below safe.
func (l ThreatLevel) Rank() int {
	switch l {
	case ThreatSafe:
		return 0
	case ThreatSuspicious:
		return 1
	case ThreatDangerous:
		return 2
	default:
		return -1
	}
}

// AtLeast reports whether l is as severe as other or more.
func (l ThreatLevel) AtLeast(other ThreatLevel) bool {
	return l.Rank() >= other.Rank()
}

// ParseThreatLevel converts a level name (case-insensitive) to a ThreatLevel.
func ParseThreatLevel(s string) (ThreatLevel, error) {
	l := ThreatLevel(strings.ToLower(strings.TrimSpace(s)))
	if l.Rank() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownThreatLevel, s)
	}
	return l, nil
}

// LevelForScore maps a threat score (0-10) to its ThreatLevel.
// Scores of 7 and above are dangerous, 4 and above suspicious.
func LevelForScore(score int) ThreatLevel {
	switch {
	case score >= 7:
		return ThreatDangerous
	case score >= 4:
		return ThreatSuspicious
	default:
		return ThreatSafe
	}
}
