package geography

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"ukcensusapi/internal/core"
	"ukcensusapi/internal/query"
)

type fakeFetcher struct {
	responses map[string]string
	calls     int
}

func (f *fakeFetcher) FetchJSON(_ context.Context, path string, _ query.Params) ([]byte, error) {
	f.calls++
	body, ok := f.responses[path]
	if !ok {
		return nil, core.NewTransportError("unexpected status 404 from "+path, nil)
	}
	return []byte(body), nil
}

func codeList(codes map[int]string) string {
	out := `{"structure":{"codelists":{"codelist":[{"code":[`
	first := true
	for v, label := range codes {
		if !first {
			out += ","
		}
		first = false
		out += fmt.Sprintf(`{"value":%d,"description":{"value":%q}}`, v, label)
	}
	return out + `]}]}}}`
}

func geoPath(area string, areaType int) string {
	return fmt.Sprintf("api/v01/dataset/NM_144_1/geography/%sTYPE%d.def.sdmx.json", area, areaType)
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{responses: map[string]string{
		geoPath("2092957703", LAD): codeList(map[int]string{
			1946157057: "Hartlepool",
			1946157058: "Middlesbrough",
			1946157124: "Leeds",
		}),
		geoPath("1946157124", MSOA): codeList(map[int]string{
			1245710411: "Leeds 001", 1245710412: "Leeds 002", 1245710413: "Leeds 003",
		}),
		geoPath("1946157057", MSOA): codeList(map[int]string{
			1245709241: "Hartlepool 001", 1245709243: "Hartlepool 003",
		}),
		geoPath("1946157058", MSOA): `{"structure":{"codelists":{}}}`,
	}}
}

func TestNew_BuildsLADTableOnce(t *testing.T) {
	f := newFetcher()
	d := New(context.Background(), f, nil)

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 1, f.calls)

	assert.Equal(t, []string{"1946157124", "1946157057"}, d.LADCodes("Leeds", "Hartlepool"))
	assert.Equal(t, []string{"1946157058"}, d.LADCodes("Nowhere", "Middlesbrough"))
	assert.Empty(t, d.LADCodes("Nowhere"))
	assert.Equal(t, 1, f.calls, "lookups must not touch the network")
}

func TestNew_FailureLeavesEmptyTable(t *testing.T) {
	d := New(context.Background(), &fakeFetcher{responses: map[string]string{}}, nil)
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.LADCodes("Leeds"))
}

func TestGeoCodes(t *testing.T) {
	d := New(context.Background(), newFetcher(), nil)

	got := d.GeoCodes(context.Background(), []string{"1946157124", "1946157057"}, MSOA)
	assert.Equal(t, "1245709241,1245709243,1245710411...1245710413", got)
}

func TestGeoCodes_SkipsInvalidAreas(t *testing.T) {
	d := New(context.Background(), newFetcher(), nil)

	// Malformed response, then unknown area, then a valid one.
	got := d.GeoCodes(context.Background(), []string{"1946157058", "E99999999", "1946157124"}, MSOA)
	assert.Equal(t, "1245710411...1245710413", got)

	assert.Equal(t, "", d.GeoCodes(context.Background(), nil, MSOA))
}
