// Package integration holds end-to-end tests that run the updater against a
// local HTTP release server.
package integration
