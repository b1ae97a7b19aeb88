// Package risk turns scan evidence into a verdict.
//
// Aggregate scores a completed ScanResult with a fixed additive scheme and
// fills its threat level, indicators and recommendations. Classify builds a
// degraded ScanResult for scans that could not complete, based on the kind
// of failure that stopped them.
package risk
