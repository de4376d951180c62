// Package metadata resolves dataset schemas (internal table id, description and
// per-field code→label dictionaries) from the service and persists them so
// later reads need no network access.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"ukcensusapi/internal/core"
	"ukcensusapi/internal/nomis"
	"ukcensusapi/internal/query"
)

// Record is the schema of one dataset.
//
// Field codes are integers. JSON encodes the inner map keys as strings and
// decodes them back to integers, so persisted records never expose string keys.
type Record struct {
	TableID     string                    `json:"nomis_table"`
	Description string                    `json:"description"`
	Fields      map[string]map[int]string `json:"fields"`
}

// Lookup returns the code→label dictionary of field.
func (r *Record) Lookup(field string) (map[int]string, bool) {
	if r == nil {
		return nil, false
	}
	labels, ok := r.Fields[field]
	return labels, ok
}

// FieldNames returns the dataset's field names in sorted order.
func (r *Record) FieldNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store persists records by public table name.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the record for table.
	// Returns nil, nil if nothing is stored yet.
	Get(ctx context.Context, table string) (*Record, error)

	// Set stores the record for table.
	Set(ctx context.Context, table string, rec *Record) error

	// Close releases any resources held by the store.
	Close() error
}

// Fetcher retrieves definition documents from the service.
type Fetcher interface {
	FetchJSON(ctx context.Context, path string, params query.Params) ([]byte, error)
}

// Resolver builds records from the service and reads and writes them through a Store.
type Resolver struct {
	fetcher Fetcher
	store   Store
	logger  *slog.Logger
}

// NewResolver creates a Resolver. A nil logger selects slog.Default().
func NewResolver(fetcher Fetcher, store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{fetcher: fetcher, store: store, logger: logger}
}

// Get fetches the schema of table from the service.
//
// A table unknown to the service yields a not_found error. A failure while
// fetching any field's code list aborts the whole build; partial records are
// never returned.
func (r *Resolver) Get(ctx context.Context, table string) (*Record, error) {
	raw, err := r.fetcher.FetchJSON(ctx, "api/v01/dataset/def.sdmx.json", query.Params{"search": "*" + table + "*"})
	if err != nil {
		r.logger.Warn("metadata search failed", "table", table, "error", err)
		return nil, err
	}

	family, err := nomis.ParseKeyFamily(raw)
	if err != nil {
		if core.IsKind(err, core.KindNotFound) {
			return nil, core.NewNotFoundError(fmt.Sprintf("no dataset matches %q", table))
		}
		r.logger.Warn("unexpected metadata search response", "table", table, "error", err)
		return nil, err
	}

	rec := &Record{
		TableID:     family.ID,
		Description: family.Description,
		Fields:      make(map[string]map[int]string, len(family.Dimensions)),
	}
	for _, field := range family.Dimensions {
		path := "api/v01/dataset/" + family.ID + "/" + field + ".def.sdmx.json"
		fraw, err := r.fetcher.FetchJSON(ctx, path, query.Params{})
		if err != nil {
			r.logger.Warn("error requesting metadata", "table", table, "field", field, "error", err)
			return nil, err
		}
		codes, skipped, err := nomis.ParseCodeListLenient(fraw)
		if err != nil {
			r.logger.Warn("unexpected code list response", "table", table, "field", field, "error", err)
			return nil, err
		}
		if len(skipped) > 0 {
			r.logger.Debug("skipped non-integer codes", "table", table, "field", field, "codes", skipped)
		}

		labels := make(map[int]string, len(codes))
		for _, c := range codes {
			labels[c.Value] = c.Label
		}
		rec.Fields[field] = labels
	}

	return rec, nil
}

// Load returns the stored record for table, fetching it from the service when
// nothing is stored. A fetched record is not persisted; see Write.
func (r *Resolver) Load(ctx context.Context, table string) (*Record, error) {
	rec, err := r.store.Get(ctx, table)
	if err != nil {
		r.logger.Warn("failed to read stored metadata, fetching", "table", table, "error", err)
	}
	if rec != nil {
		return rec, nil
	}

	r.logger.Info("metadata not cached, downloading", "table", table)
	return r.Get(ctx, table)
}

// Write persists rec for table. A nil record is skipped so that a table the
// service does not know is looked up again next time.
func (r *Resolver) Write(ctx context.Context, table string, rec *Record) error {
	if rec == nil {
		r.logger.Debug("no metadata to write", "table", table)
		return nil
	}
	if err := r.store.Set(ctx, table, rec); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", table, err)
	}
	r.logger.Info("wrote metadata", "table", table, "fields", len(rec.Fields))
	return nil
}

// Refresh fetches the schema of table and persists it.
func (r *Resolver) Refresh(ctx context.Context, table string) (*Record, error) {
	rec, err := r.Get(ctx, table)
	if err != nil {
		return nil, err
	}
	return rec, r.Write(ctx, table, rec)
}
