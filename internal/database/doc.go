// Package database stores scan history in SQLite.
//
// Every fresh scan, degraded ones included, is written to a single
// history.db file through modernc.org/sqlite, a CGO-free driver. A row
// keeps the verdict columns used by listings next to the full result as
// JSON and the screenshot as a blob, so listing history never decodes
// results or loads images.
package database
