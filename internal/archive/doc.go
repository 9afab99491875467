// Package archive unpacks downloaded release archives and locates the
// executable inside them.
//
// Two container formats are supported, picked by file extension: zip and
// gzip-compressed tar. Entry paths are confined to the destination directory
// and the permission bits stored in the archive are preserved.
package archive
