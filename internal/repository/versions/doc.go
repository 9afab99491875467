// Package versions implements the local store of installed builds.
//
// Every build lives in versions/<version>/ next to its metadata.json record.
// A directory is only considered installed when both files are present, so a
// crash between the two writes leaves nothing half visible. The "current"
// symlink names the active build and is replaced atomically with a rename.
package versions
