// Package posture evaluates the security hygiene of a scanned page: its
// response headers, cookie flags, certificate, mixed content, exposed
// ports and domain age. It produces the 0-100 security score and the list
// of Findings consumed by the risk aggregator.
package posture
