// Package asset picks the release artifact to install and its optional
// checksum companion.
//
// Selection runs in one of three modes: the default mode looks for canonical
// asset names, the interactive mode filters candidates and delegates the
// final choice to a Selector, and the override mode takes a name and URL
// from the caller.
package asset
