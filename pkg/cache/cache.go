// Package cache stores rendered word clouds so identical requests are served
// without running the layout engine again.
//
// # Backends
//
//   - [FileCache]: one JSON file per entry under a directory (CLI)
//   - [RedisCache]: a shared Redis instance (HTTP server)
//   - [MemoryCache]: an in-process map (server fallback and tests)
//   - [NullCache]: stores nothing (--no-cache)
//
// # Keys
//
// A [Keyer] derives keys from content hashes. Artifact keys hash the text,
// mask, font, color and every option that influences the layout, so any
// change to an input produces a different key. Result keys address a stored
// image by the ID the server handed out.
package cache

import (
	"context"
	"time"
)

// Default time-to-live values.
const (
	// TTLArtifact keeps rendered images keyed by their inputs.
	TTLArtifact = 7 * 24 * time.Hour

	// TTLResult keeps images addressed by result ID.
	TTLResult = 24 * time.Hour
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the data for key and whether it was found. A missing or
	// expired entry is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// ArtifactKey identifies a rendered image by its inputs.
	ArtifactKey(opts ArtifactKeyOpts) string

	// ResultKey identifies a rendered image by result ID.
	ResultKey(id string) string
}

// ArtifactKeyOpts lists everything that determines a rendered image.
type ArtifactKeyOpts struct {
	TextHash string `json:"text"`
	MaskHash string `json:"mask"`
	FontHash string `json:"font"`
	Color    string `json:"color"`

	// Options holds the layout options; it is hashed as JSON.
	Options any `json:"options"`
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey returns "artifact:<sha256 of opts>".
func (DefaultKeyer) ArtifactKey(opts ArtifactKeyOpts) string {
	return hashKey("artifact", opts)
}

// ResultKey returns "result:<id>".
func (DefaultKeyer) ResultKey(id string) string {
	return "result:" + id
}
