// Package types holds leaf identifiers shared across courier packages.
package types

import "fmt"

// Feature identifies one independent telemetry track. Each feature owns its
// own storage directory, write queue, and upload worker; features never share
// files or locks.
type Feature string

// Known features. The set is open: a custom feature name is valid as long as
// it is a safe directory name.
const (
	FeatureLogs   Feature = "logs"
	FeatureTraces Feature = "traces"
	FeatureRUM    Feature = "rum"
)

// Valid reports whether the feature name is usable as a storage directory
// component. Empty names and names with path separators are rejected.
func (f Feature) Valid() error {
	if f == "" {
		return fmt.Errorf("feature name is empty")
	}
	for _, r := range string(f) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("feature name %q contains invalid character %q", string(f), r)
		}
	}
	return nil
}

func (f Feature) String() string { return string(f) }
