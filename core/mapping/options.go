package mapping

import "github.com/deepaksharma/spancore/core/telemetry"

// DefaultExcludedPrefixes lists the attribute key prefixes that never become
// custom properties. Matching is a case-sensitive prefix match, so the dot is
// part of each prefix.
var DefaultExcludedPrefixes = []string{
	"http.",
	"db.",
	"rpc.",
	"net.",
	"messaging.",
	"microsoft.",
}

// Options controls how the engine splits attributes into properties.
type Options struct {
	// ExcludedPrefixes are attribute key prefixes dropped from properties
	ExcludedPrefixes []string `mapstructure:"excluded_prefixes" yaml:"excluded_prefixes"`

	// ExcludedKeys are exact attribute keys dropped from properties
	ExcludedKeys []string `mapstructure:"excluded_keys" yaml:"excluded_keys"`
}

// DefaultOptions returns the default exclusion lists.
func DefaultOptions() Options {
	return Options{
		ExcludedPrefixes: append([]string(nil), DefaultExcludedPrefixes...),
		ExcludedKeys:     append([]string(nil), telemetry.InternalTagKeys...),
	}
}
