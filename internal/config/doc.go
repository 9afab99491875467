// Package config defines the updater settings and provides helpers to load,
// validate and save them in YAML format.
//
// Every field has a default, so a missing settings file at the default
// location simply means "use defaults".
package config
