// Package cache provides the in-memory result cache used by the scan engine.
//
// The cache is keyed by normalized URL, expires entries after a fixed TTL
// and enforces a hard entry ceiling. When the ceiling is reached, the
// oldest entries are evicted together in one batch instead of one at a
// time, so a burst of new URLs does not trigger an eviction per insert.
//
// A Cache is an explicit value owned by its caller; there is no package
// level instance. It is safe for concurrent use.
package cache
