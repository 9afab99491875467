// Package cache persists a time-bounded snapshot of the release list.
//
// The FileCache stores the list as JSON together with its fetch time. A
// snapshot older than the TTL, a missing file and an undecodable file are all
// reported as ErrCacheMiss so callers fall back to the registry.
package cache
