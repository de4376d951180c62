// Package datacache downloads query results once and serves every later
// identical query from a local directory.
//
// The cache key is the MD5 digest of the canonical query URL, scoped by the
// public table name: {table}_{hex}.tsv. Existence of that file is the only
// "cached" signal; files never expire.
package datacache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ukcensusapi/internal/core"
	"ukcensusapi/internal/metadata"
	"ukcensusapi/internal/observability"
	"ukcensusapi/internal/query"
	"ukcensusapi/internal/table"
)

// NoDataMessage is reported when a query downloads zero bytes.
const NoDataMessage = "ERROR: Query returned no data. Check table and query parameters"

// ErrNoData is wrapped by the invalid_query error returned for an empty download.
var ErrNoData = errors.New("query returned no data")

// Downloader fetches data query URLs.
type Downloader interface {
	BaseURL() string
	Credential() string
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// MetadataSource builds and persists the schema of a table.
type MetadataSource interface {
	Get(ctx context.Context, table string) (*metadata.Record, error)
	Write(ctx context.Context, table string, rec *metadata.Record) error
}

// Cache is the data cache. It assumes a single writer per directory.
type Cache struct {
	dir    string
	client Downloader
	meta   MetadataSource
	logger *slog.Logger
}

// New creates a cache rooted at dir, creating the directory if needed.
func New(dir string, client Downloader, meta MetadataSource, logger *slog.Logger) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{dir: dir, client: client, meta: meta, logger: logger}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// URL returns the canonical data URL, credential included.
func (c *Cache) URL(tableInternal string, params query.Params) string {
	return query.BuildURL(c.client.BaseURL(), tableInternal, params, c.client.Credential())
}

// Key returns the cache file name for a query.
func (c *Cache) Key(tableName, tableInternal string, params query.Params) string {
	sum := md5.Sum([]byte(c.URL(tableInternal, params)))
	return tableName + "_" + hex.EncodeToString(sum[:]) + ".tsv"
}

// Path returns the path of the cached result for a query, downloading it
// first if it is not cached.
//
// On a miss the table's metadata is fetched and persisted before the download,
// whether or not the download succeeds. A download of zero bytes is discarded
// and reported as an invalid_query error.
func (c *Cache) Path(ctx context.Context, tableName, tableInternal string, params query.Params) (string, error) {
	if tableName == "" || strings.ContainsAny(tableName, `/\`) {
		return "", core.NewInvalidQueryError(fmt.Sprintf("invalid table name %q", tableName))
	}

	key := c.Key(tableName, tableInternal, params)
	path := filepath.Join(c.dir, key)

	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		observability.CacheLookups.WithLabelValues(observability.ResultHit).Inc()
		c.logger.Info("using cached data", "file", path)
		return path, nil
	}
	observability.CacheLookups.WithLabelValues(observability.ResultMiss).Inc()

	c.cacheMetadata(ctx, tableName)

	c.logger.Info("downloading and caching data", "file", path)
	if err := c.download(ctx, c.URL(tableInternal, params), key, path); err != nil {
		return "", err
	}
	return path, nil
}

// Get returns the parsed result of a query, downloading it first if needed.
func (c *Cache) Get(ctx context.Context, tableName, tableInternal string, params query.Params) (*table.Table, error) {
	path, err := c.Path(ctx, tableName, tableInternal, params)
	if err != nil {
		return nil, err
	}
	t, err := table.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing cached data %s: %w", path, err)
	}
	return t, nil
}

// GetCompat is Path for callers that can only consume strings: it returns the
// cached file path on success and an error message otherwise.
func (c *Cache) GetCompat(ctx context.Context, tableName, tableInternal string, params query.Params) string {
	path, err := c.Path(ctx, tableName, tableInternal, params)
	switch {
	case err == nil:
		return path
	case errors.Is(err, ErrNoData):
		return NoDataMessage
	default:
		return "ERROR: " + err.Error()
	}
}

func (c *Cache) cacheMetadata(ctx context.Context, tableName string) {
	rec, err := c.meta.Get(ctx, tableName)
	if err != nil {
		observability.MetadataFetches.WithLabelValues(observability.OutcomeError).Inc()
		c.logger.Warn("metadata unavailable", "table", tableName, "error", err)
		return
	}
	if err := c.meta.Write(ctx, tableName, rec); err != nil {
		observability.MetadataFetches.WithLabelValues(observability.OutcomeError).Inc()
		c.logger.Warn("failed to cache metadata", "table", tableName, "error", err)
		return
	}
	observability.MetadataFetches.WithLabelValues(observability.OutcomeOK).Inc()
}

// download writes rawURL to a temp file beside path and renames it into
// place only when it holds data.
func (c *Cache) download(ctx context.Context, rawURL, key, path string) error {
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := c.client.Download(ctx, rawURL, tmp)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		observability.Downloads.WithLabelValues(observability.OutcomeError).Inc()
		c.logger.Error("download failed", "file", path, "error", err)
		return err
	}

	if n == 0 {
		os.Remove(tmpPath)
		observability.Downloads.WithLabelValues(observability.OutcomeEmpty).Inc()
		c.logger.Error(NoDataMessage, "file", path)
		return &core.Error{Kind: core.KindInvalidQuery, Message: "empty download", Err: ErrNoData}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	observability.Downloads.WithLabelValues(observability.OutcomeOK).Inc()
	observability.DownloadedBytes.Add(float64(n))
	return nil
}
