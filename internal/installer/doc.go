// Package installer places a binary at its system-wide location and inspects
// the binary already installed there.
//
// System applies the new file with go-update when the target directory is
// writable and falls back to "sudo install" otherwise. ProbeVersion asks the
// live binary for its version and RunningInstances lists its processes.
package installer
