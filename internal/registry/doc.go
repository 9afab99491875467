// Package registry talks to the GitHub releases API.
//
// Client fetches release metadata and downloads assets. Every call is a
// single request without retries: non-2xx responses become *release.APIError
// and transport failures wrap release.ErrNetwork.
package registry
