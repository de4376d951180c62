// Package observability holds the Prometheus metrics recorded by the data
// cache and metadata resolution. Metrics register with the default registry;
// exposing them is left to the embedding program.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for CacheLookups.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Outcome labels for Downloads and MetadataFetches.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

var (
	// CacheLookups counts data cache lookups by result.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ukcensusapi_data_cache_lookups_total",
			Help: "Total number of data cache lookups, by hit or miss",
		},
		[]string{"result"},
	)

	// Downloads counts data downloads by outcome. "empty" downloads returned
	// zero bytes and were discarded.
	Downloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ukcensusapi_downloads_total",
			Help: "Total number of data downloads, by outcome",
		},
		[]string{"outcome"},
	)

	// DownloadedBytes sums the size of every cached download.
	DownloadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ukcensusapi_downloaded_bytes_total",
			Help: "Total bytes written to the data cache",
		},
	)

	// MetadataFetches counts metadata builds triggered by data cache misses.
	MetadataFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ukcensusapi_metadata_fetches_total",
			Help: "Total number of metadata fetches triggered by data downloads, by outcome",
		},
		[]string{"outcome"},
	)
)
