// Package release contains the domain model shared by the updater:
// published releases and their assets, installed version records,
// semantic version helpers and the error taxonomy used across packages.
package release
