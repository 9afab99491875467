// Package packager prepares release artifacts for publishing.
//
// For every archive it writes a "<archive>.sha256" companion holding the
// SHA-256 digest, which the updater downloads to verify the archive.
package packager
