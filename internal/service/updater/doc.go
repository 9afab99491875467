// Package updater downloads, verifies and installs releases of the managed
// binary and switches between stored versions.
//
// An update backs up the live binary, fetches the latest release, selects an
// asset, verifies it against its published checksum, extracts the executable,
// stores it, installs it system-wide and only then moves the current pointer.
// Rollback, listing, changelog and comparison commands share the same wiring.
package updater
