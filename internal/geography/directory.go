// Package geography resolves area names and area codes to the service's
// internal geography codes.
package geography

import (
	"context"
	"log/slog"
	"strconv"

	"ukcensusapi/internal/geocode"
	"ukcensusapi/internal/nomis"
	"ukcensusapi/internal/query"
)

// Area types (geographic resolutions), as defined by dataset NM_144_1.
const (
	// LAD is local authority district. 463 would give counties instead.
	LAD  = 464
	MSOA = 297
	LSOA = 298
	OA   = 299
)

// Country-level area codes.
const (
	England      = 2092957699
	EnglandWales = 2092957703
	GB           = 2092957698
	UK           = 2092957697
)

// codeListDataset is the dataset whose geography definitions are queried.
const codeListDataset = "NM_144_1"

// Fetcher retrieves definition documents from the service.
type Fetcher interface {
	FetchJSON(ctx context.Context, path string, params query.Params) ([]byte, error)
}

// Directory holds the local authority district name→code table, built once by
// New and read-only afterwards.
type Directory struct {
	fetcher Fetcher
	logger  *slog.Logger
	lads    map[string]string
}

// New builds a Directory, loading every England and Wales local authority
// district. A failed load leaves the name table empty; it is logged, not
// returned, so area-code queries remain usable.
func New(ctx context.Context, fetcher Fetcher, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{fetcher: fetcher, logger: logger, lads: map[string]string{}}

	logger.Info("caching local authority codes")
	codes, err := d.codeList(ctx, strconv.Itoa(EnglandWales), LAD)
	if err != nil {
		logger.Error("failed to load local authority codes", "error", err)
		return d
	}
	for _, c := range codes {
		d.lads[c.Label] = strconv.Itoa(c.Value)
	}
	logger.Info("cached local authority codes", "count", len(d.lads))
	return d
}

// Len returns the number of known local authority districts.
func (d *Directory) Len() int { return len(d.lads) }

// LADCodes returns the codes of the named local authority districts in input
// order. Unknown names are omitted.
func (d *Directory) LADCodes(names ...string) []string {
	codes := make([]string, 0, len(names))
	for _, name := range names {
		if code, ok := d.lads[name]; ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// GeoCodes returns, in compacted form, the codes of every area of type
// areaType within each of areaIDs. An area whose lookup fails is logged and
// skipped.
func (d *Directory) GeoCodes(ctx context.Context, areaIDs []string, areaType int) string {
	var all []int
	for _, id := range areaIDs {
		codes, err := d.codeList(ctx, id, areaType)
		if err != nil {
			d.logger.Warn("does not appear to be a valid area code", "area", id, "type", areaType, "error", err)
			continue
		}
		for _, c := range codes {
			all = append(all, c.Value)
		}
	}
	return geocode.Compact(all)
}

func (d *Directory) codeList(ctx context.Context, area string, areaType int) ([]nomis.Code, error) {
	path := "api/v01/dataset/" + codeListDataset + "/geography/" + area + "TYPE" + strconv.Itoa(areaType) + ".def.sdmx.json"
	raw, err := d.fetcher.FetchJSON(ctx, path, query.Params{})
	if err != nil {
		return nil, err
	}
	return nomis.ParseCodeList(raw)
}
