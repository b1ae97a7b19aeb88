// Package server exposes the scan engine over HTTP.
//
// Routes:
//
//	POST /api/v1/scan          {"url": "..."} -> ScanResult
//	GET  /api/v1/history       ?url=&limit=  -> []Summary
//	GET  /api/v1/history/{id}  -> ScanResult
//	GET  /healthz
//
// Scans are throttled by a token bucket shared by all clients, since every
// scan starts a browser. Requests over the limit get 429.
package server
