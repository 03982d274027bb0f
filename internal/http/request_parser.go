// Package http provides the dashboard's HTTP server and handlers.
//
// This file implements parsing of the monitoring filter from query strings.

package http

import (
	"net/url"

	"asetmon/internal/core"
)

const (
	paramRegion = "kph"
	paramType   = "jenis"
)

// ParseFilter reads the region (kph) and repeated type (jenis) parameters.
// Blank values are dropped and duplicate types collapsed.
func ParseFilter(query url.Values) core.Filter {
	f := core.Filter{Region: cleanInput(query.Get(paramRegion))}
	if f.AllRegionsSelected() {
		f.Region = core.AllRegions
	}
	seen := make(map[string]struct{})
	for _, raw := range query[paramType] {
		t := cleanInput(raw)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		f.Types = append(f.Types, t)
	}
	return f
}

// EncodeFilter is the inverse of ParseFilter. The all-regions filter
// encodes to an empty region.
func EncodeFilter(f core.Filter) string {
	v := url.Values{}
	if !f.AllRegionsSelected() {
		v.Set(paramRegion, f.Region)
	}
	for _, t := range f.Types {
		v.Add(paramType, t)
	}
	return v.Encode()
}
