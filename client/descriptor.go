package client

import (
	"maps"
	"time"
)

// Descriptor describes one outbound call. It is treated as immutable: the
// client copies its maps before use and never writes to it.
type Descriptor struct {
	Endpoint string
	Method   string
	Params   map[string]any
	Headers  map[string]string
	Body     any

	// Timeout bounds each attempt. Zero falls through to the client layers.
	Timeout time.Duration

	// MaxRetries overrides the retry budget when non-nil; see Retries.
	MaxRetries *int

	// Filename names the file written by FileParser.
	Filename string

	// NoCache opts this call out of caching entirely.
	NoCache bool

	// CacheTTL overrides the store TTL for this call.
	CacheTTL time.Duration

	// Settings carries any other call level override.
	Settings Settings
}

// Retries returns a pointer for Descriptor.MaxRetries and Settings.MaxRetries,
// so that an explicit zero is distinguishable from unset.
func Retries(n int) *int { return &n }

// callLayer folds the descriptor's own fields over its Settings.
func (d Descriptor) callLayer() Settings {
	s := d.Settings
	if d.Endpoint != "" {
		s.Endpoint = d.Endpoint
	}
	if d.Method != "" {
		s.Method = d.Method
	}
	if len(d.Headers) > 0 {
		s.Headers = mergeHeaders(s.Headers, d.Headers)
	}
	if d.Timeout > 0 {
		s.Timeout = d.Timeout
	}
	if d.MaxRetries != nil {
		s.MaxRetries = d.MaxRetries
	}
	if d.CacheTTL > 0 {
		s.CacheTTL = d.CacheTTL
	}
	return s
}

// clone copies the mutable parts a call hands to collaborators.
func (d Descriptor) clone() Descriptor {
	d.Params = maps.Clone(d.Params)
	d.Headers = maps.Clone(d.Headers)
	return d
}

func mergeHeaders(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	maps.Copy(out, base)
	maps.Copy(out, over)
	return out
}
