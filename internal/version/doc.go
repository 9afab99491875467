// Package version exposes build metadata of the updater itself.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Short and Full render the version for CLI output; UserAgent identifies
// the updater to the release registry.
package version
