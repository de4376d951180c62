// Package query builds canonical request URLs for the statistical data service.
//
// Parameters are always encoded in ascending key order so that equal parameter
// sets produce byte-identical URLs, which the data cache relies on for its keys.
package query

import (
	"maps"
	"net/url"
	"strconv"
	"strings"

	"ukcensusapi/internal/geocode"
)

// CredentialParam is the query parameter carrying the API key.
const CredentialParam = "uid"

// Params maps query parameter names to their encoded values.
type Params map[string]string

// Set stores a string value.
func (p Params) Set(key, value string) Params {
	p[key] = value
	return p
}

// SetInt stores an integer value.
func (p Params) SetInt(key string, value int) Params {
	p[key] = strconv.Itoa(value)
	return p
}

// SetCodes stores a set of category or geography codes in compacted form.
func (p Params) SetCodes(key string, codes ...int) Params {
	p[key] = geocode.Compact(codes)
	return p
}

// SetRange stores the inclusive code range [from, to]. An empty range
// (to < from) stores an empty selection.
func (p Params) SetRange(key string, from, to int) Params {
	switch {
	case to < from:
		p[key] = ""
	case to == from:
		p[key] = strconv.Itoa(from)
	default:
		p[key] = strconv.Itoa(from) + geocode.RangeSep + strconv.Itoa(to)
	}
	return p
}

// Clone returns a copy that can be modified without affecting p.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// Encode returns the percent-encoded query string with keys sorted ascending.
// A non-empty credential is merged in under CredentialParam.
func (p Params) Encode(credential string) string {
	values := make(url.Values, len(p)+1)
	for k, v := range p {
		values.Set(k, v)
	}
	if credential != "" {
		values.Set(CredentialParam, credential)
	}
	// url.Values.Encode sorts by key
	return values.Encode()
}

// BuildURL returns the TSV data URL for a table's internal id.
func BuildURL(baseURL, tableInternalID string, params Params, credential string) string {
	return BuildPath(baseURL, "api/v01/dataset/"+tableInternalID+".data.tsv", params, credential)
}

// BuildPath returns the URL for an arbitrary service path, for example a
// definition endpoint such as "api/v01/dataset/def.sdmx.json".
func BuildPath(baseURL, path string, params Params, credential string) string {
	base := strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	return base + "?" + params.Encode(credential)
}
