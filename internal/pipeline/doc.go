// Package pipeline orchestrates a deep URL risk scan.
//
// An Engine normalizes the URL, answers from its result cache when it can,
// and otherwise opens a browser session and runs a Pipeline of steps over
// a shared Scan:
//
//  1. navigate: load the page under a hard timeout
//  2. capture: read content, screenshot and cookies, retrying on context loss
//  3. probe: run DNS, WHOIS, TLS and port probes concurrently
//  4. inspect: extract technologies, links, scripts and forms from the DOM
//  5. posture: score headers, cookies and TLS against the baseline
//  6. verdict: aggregate every signal into the threat score
//
// Only a failing navigate step (or a browser that cannot start) aborts a
// scan; the Engine then returns the degraded result of risk.Classify.
// Every other failure is absorbed by its step and leaves a default value
// in the result. Engine.Scan therefore always returns a well-formed
// ScanResult and never an error.
//
// ScanBatch runs many scans with bounded concurrency using errgroup.
package pipeline
