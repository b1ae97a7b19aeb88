// Package probe implements the passive intelligence probes run against the
// host of a scanned URL: DNS resolution, WHOIS registration lookup, TLS
// certificate inspection and a TCP connect scan of well-known ports.
//
// Every probe owns its failure handling and reports its outcome as a
// Result value instead of returning an error. Gather runs all probes
// concurrently and waits for every one of them; a failed probe never
// cancels its siblings.
package probe
