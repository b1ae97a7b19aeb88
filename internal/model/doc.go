// Package model defines the data structures shared across urlrisk.
//
// This package contains the following main types:
//   - ScanResult: the unit of output and of cache storage for one URL scan
//   - Finding: a security weakness reported by the posture analyzer
//   - Severity and ThreatLevel: the two rating scales used in results
//
// Models live in their own package so that the probes, analyzers, cache,
// history store and report writers can share them without import cycles.
// Every type is JSON-serializable; the JSON field names are part of the
// public API served by `urlrisk serve`.
package model
