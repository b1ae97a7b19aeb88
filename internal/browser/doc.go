// Package browser drives a headless Chrome instance through the DevTools
// protocol and records what a page does while it loads.
//
// A Launcher starts one isolated browser per scan. The returned Session
// navigates to the target, waits for the DOM and a short network-idle
// period, and captures the rendered page: final URL, title, serialized
// HTML, cookies and an optional screenshot. While the session is open a
// Recorder listens to protocol events and tallies requests by resource
// type, contacted hosts, transferred bytes, the main document's response
// headers and console output.
//
// Navigation failures are reported as *NavigationError, which carries the
// Chrome net error code and maps it to a model.FailureKind. A capture that
// races with a main-frame navigation fails with ErrContextLost so callers
// can retry it.
package browser
