// Package ukcensusapi is a caching client for the Nomisweb UK census data service.
//
// It builds canonical query URLs for tabular datasets, downloads each distinct
// query once into a local cache directory, and resolves the dataset metadata
// (field names and code→label dictionaries) needed to interpret the results.
package ukcensusapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ukcensusapi/config"
	"ukcensusapi/internal/cache"
	"ukcensusapi/internal/datacache"
	"ukcensusapi/internal/geography"
	"ukcensusapi/internal/httpclient"
	"ukcensusapi/internal/logging"
	"ukcensusapi/internal/metadata"
	"ukcensusapi/internal/nomis"
	"ukcensusapi/internal/query"
	"ukcensusapi/internal/table"
)

// Re-exported types so callers need not import internal packages.
type (
	// Params holds query parameters; see query.Params.
	Params = query.Params
	// Metadata is a dataset schema.
	Metadata = metadata.Record
	// Table is a downloaded result.
	Table = table.Table
)

// Area types and country codes for GetGeoCodes.
const (
	LAD  = geography.LAD
	MSOA = geography.MSOA
	LSOA = geography.LSOA
	OA   = geography.OA

	England      = geography.England
	EnglandWales = geography.EnglandWales
	GB           = geography.GB
	UK           = geography.UK
)

// Nomisweb is the entry point. It is intended for use from a single goroutine.
type Nomisweb struct {
	client    *nomis.Client
	store     metadata.Store
	resolver  *metadata.Resolver
	data      *datacache.Cache
	directory *geography.Directory
	logger    *slog.Logger
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger *slog.Logger
	store  metadata.Store
}

// WithLogger sets the logger; by default one is built from cfg.Log.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetadataStore overrides the store selected by cfg.Cache.MetadataStore.
func WithMetadataStore(s metadata.Store) Option {
	return func(o *options) { o.store = s }
}

// New creates the client: it prepares the cache directory, opens the
// metadata store, checks the service is reachable and loads the local
// authority district names. Service unavailability is logged, not returned.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Nomisweb, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	}

	if cfg.Nomis.APIKey == "" {
		logger.Warn("no API key found, downloads may be truncated",
			"hint", "set NOMIS_API_KEY; register at www.nomisweb.co.uk to obtain a key")
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = openStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	httpClient := httpclient.NewWithTimeout(time.Duration(cfg.HTTP.Timeout) * time.Second)
	client := nomis.New(cfg.Nomis.BaseURL, cfg.Nomis.APIKey, httpClient, logger)
	resolver := metadata.NewResolver(client, store, logger)

	data, err := datacache.New(cfg.Cache.Dir, client, resolver, logger)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	logger.Info("cache directory", "dir", data.Dir())

	if err := client.Ping(ctx); err != nil {
		logger.Error("service unavailable", "url", client.BaseURL(), "error", err)
	}

	return &Nomisweb{
		client:    client,
		store:     store,
		resolver:  resolver,
		data:      data,
		directory: geography.New(ctx, client, logger),
		logger:    logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (metadata.Store, error) {
	switch cfg.Cache.MetadataStore {
	case config.StoreRedis:
		s, err := cache.NewRedisStore(ctx, cache.RedisConfig{URL: cfg.Cache.RedisURL, Prefix: cfg.Cache.RedisPrefix})
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata store: %w", err)
		}
		return s, nil
	default:
		return cache.NewLocalStore(cfg.Cache.Dir), nil
	}
}

// Close releases the metadata store.
func (n *Nomisweb) Close() error {
	return n.store.Close()
}

// CacheDir returns the directory holding downloaded data.
func (n *Nomisweb) CacheDir() string { return n.data.Dir() }

// URL returns the canonical data URL for a query, credential included.
func (n *Nomisweb) URL(tableInternal string, params Params) string {
	return n.data.URL(tableInternal, params)
}

// GetData returns the result of a query against table, whose internal id is
// tableInternal (see Metadata.TableID). Each distinct query is downloaded at
// most once; a query that returns no data yields an invalid_query error.
func (n *Nomisweb) GetData(ctx context.Context, tableName, tableInternal string, params Params) (*Table, error) {
	return n.data.Get(ctx, tableName, tableInternal, params)
}

// GetDataPath is GetData returning the cached file's path instead of a table.
func (n *Nomisweb) GetDataPath(ctx context.Context, tableName, tableInternal string, params Params) (string, error) {
	return n.data.Path(ctx, tableName, tableInternal, params)
}

// GetDataCompat returns the cached file's path, or an error message, as a
// string, for callers that cannot consume Go errors.
func (n *Nomisweb) GetDataCompat(ctx context.Context, tableName, tableInternal string, params Params) string {
	return n.data.GetCompat(ctx, tableName, tableInternal, params)
}

// GetMetadata fetches the schema of table from the service.
func (n *Nomisweb) GetMetadata(ctx context.Context, tableName string) (*Metadata, error) {
	return n.resolver.Get(ctx, tableName)
}

// LoadMetadata returns the stored schema of table, fetching it if not stored.
func (n *Nomisweb) LoadMetadata(ctx context.Context, tableName string) (*Metadata, error) {
	return n.resolver.Load(ctx, tableName)
}

// WriteMetadata persists the schema of table.
func (n *Nomisweb) WriteMetadata(ctx context.Context, tableName string, rec *Metadata) error {
	return n.resolver.Write(ctx, tableName, rec)
}

// GetGeoCodes returns, compacted, the codes of every area of type areaType
// within each of areaIDs.
func (n *Nomisweb) GetGeoCodes(ctx context.Context, areaIDs []string, areaType int) string {
	return n.directory.GeoCodes(ctx, areaIDs, areaType)
}

// GetLADCodes returns the codes of the named local authority districts.
func (n *Nomisweb) GetLADCodes(names ...string) []string {
	return n.directory.LADCodes(names...)
}

// ConvertCode adds a label column for column to t using meta; see
// table.Table.ConvertCode.
func (n *Nomisweb) ConvertCode(t *Table, column string, meta *Metadata) error {
	return t.ConvertCode(column, meta, n.logger)
}
