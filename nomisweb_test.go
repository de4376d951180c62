package ukcensusapi

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukcensusapi/config"
	"ukcensusapi/internal/core"
)

const (
	ladJSON = `{"structure":{"codelists":{"codelist":[{"code":[
{"value":1946157057,"description":{"value":"Hartlepool"}},
{"value":1946157124,"description":{"value":"Leeds"}}]}]}}}`
	msoaJSON = `{"structure":{"codelists":{"codelist":[{"code":[
{"value":1245710411,"description":{"value":"Leeds 001"}},
{"value":1245710412,"description":{"value":"Leeds 002"}}]}]}}}`
	searchJSON = `{"structure":{"keyfamilies":{"keyfamily":[{"id":"NM_2001_1","name":{"value":"KS402SC - Tenure"},
"components":{"dimension":[{"conceptref":"KS402SC_0_CODE"}]}}]}}}`
	tenureJSON = `{"structure":{"codelists":{"codelist":[{"code":[
{"value":0,"description":{"value":"All households"}},
{"value":1,"description":{"value":"Owned"}}]}]}}}`
)

// msoaTSV returns a result with one row per middle-layer area.
func msoaTSV(rows int) string {
	var b strings.Builder
	b.WriteString("GEOGRAPHY_CODE\tKS402SC_0_CODE\tOBS_VALUE\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&b, "S020%05d\t0\t%d\n", i, 100+i)
	}
	return b.String()
}

type service struct {
	*httptest.Server
	dataRequests atomic.Int32
}

func newService(t *testing.T) *service {
	t.Helper()
	s := &service{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte("<html>nomis</html>"))
		case "/api/v01/dataset/NM_144_1/geography/2092957703TYPE464.def.sdmx.json":
			_, _ = w.Write([]byte(ladJSON))
		case "/api/v01/dataset/NM_144_1/geography/1946157124TYPE297.def.sdmx.json":
			_, _ = w.Write([]byte(msoaJSON))
		case "/api/v01/dataset/def.sdmx.json":
			if r.URL.Query().Get("search") != "*KS402SC*" {
				_, _ = w.Write([]byte(`{"structure":{"keyfamilies":null}}`))
				return
			}
			_, _ = w.Write([]byte(searchJSON))
		case "/api/v01/dataset/NM_2001_1/KS402SC_0_CODE.def.sdmx.json":
			_, _ = w.Write([]byte(tenureJSON))
		case "/api/v01/dataset/NM_2001_1.data.tsv":
			s.dataRequests.Add(1)
			if r.URL.Query().Get("geography") == "bogus" {
				return
			}
			_, _ = w.Write([]byte(msoaTSV(49)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newClient(t *testing.T, s *service, apiKey string, logs *bytes.Buffer) *Nomisweb {
	t.Helper()
	cfg := config.Default()
	cfg.Nomis.BaseURL = s.URL
	cfg.Nomis.APIKey = apiKey
	cfg.Cache.Dir = t.TempDir()

	n, err := New(context.Background(), cfg, WithLogger(slog.New(slog.NewTextHandler(logs, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestNew_RequiresValidConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Cache.MetadataStore = "bogus"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_WarnsWithoutAPIKey(t *testing.T) {
	var logs bytes.Buffer
	newClient(t, newService(t), "", &logs)
	assert.Contains(t, logs.String(), "no API key found")
}

func TestEndToEnd_MSOAQuery(t *testing.T) {
	var logs bytes.Buffer
	s := newService(t)
	n := newClient(t, s, "0xKEY", &logs)
	ctx := context.Background()

	params := Params{}
	params.Set("date", "latest").
		Set("geography", "S12000033").
		SetInt("KS402SC_0_CODE", 0).
		Set("select", "GEOGRAPHY_CODE,KS402SC_0_CODE,OBS_VALUE")

	tbl, err := n.GetData(ctx, "KS402SC", "NM_2001_1", params)
	require.NoError(t, err)
	assert.Equal(t, 49, tbl.Len())

	// Second request is served from the cache.
	tbl, err = n.GetData(ctx, "KS402SC", "NM_2001_1", params.Clone())
	require.NoError(t, err)
	assert.Equal(t, 49, tbl.Len())
	assert.Equal(t, int32(1), s.dataRequests.Load())

	// The data miss persisted metadata, so loading it needs no search.
	meta, err := n.LoadMetadata(ctx, "KS402SC")
	require.NoError(t, err)
	assert.Equal(t, "NM_2001_1", meta.TableID)

	require.NoError(t, n.ConvertCode(tbl, "KS402SC_0_CODE", meta))
	assert.Equal(t, "All households", tbl.Value(0, "KS402SC_0_CODE_NAME"))

	assert.Equal(t, core.KindLookup, core.KindOf(n.ConvertCode(tbl, "C_SEX", meta)))
}

func TestGetData_NoData(t *testing.T) {
	var logs bytes.Buffer
	n := newClient(t, newService(t), "0xKEY", &logs)

	_, err := n.GetData(context.Background(), "KS402SC", "NM_2001_1", Params{"geography": "bogus"})
	assert.Equal(t, core.KindInvalidQuery, core.KindOf(err))

	msg := n.GetDataCompat(context.Background(), "KS402SC", "NM_2001_1", Params{"geography": "bogus"})
	assert.Equal(t, "ERROR: Query returned no data. Check table and query parameters", msg)
}

func TestGetDataPath(t *testing.T) {
	var logs bytes.Buffer
	n := newClient(t, newService(t), "0xKEY", &logs)

	path, err := n.GetDataPath(context.Background(), "KS402SC", "NM_2001_1", Params{"geography": "S12000033"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, n.CacheDir()))
	assert.True(t, strings.HasSuffix(path, ".tsv"))
	assert.Contains(t, n.URL("NM_2001_1", Params{"geography": "S12000033"}), "uid=0xKEY")
}

func TestGetMetadata_NotFound(t *testing.T) {
	var logs bytes.Buffer
	n := newClient(t, newService(t), "0xKEY", &logs)

	meta, err := n.GetMetadata(context.Background(), "NOSUCH")
	assert.Nil(t, meta)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestWriteThenLoadMetadata(t *testing.T) {
	var logs bytes.Buffer
	n := newClient(t, newService(t), "0xKEY", &logs)
	ctx := context.Background()

	rec := &Metadata{TableID: "NM_9_1", Description: "local", Fields: map[string]map[int]string{"F": {7: "seven"}}}
	require.NoError(t, n.WriteMetadata(ctx, "LOCAL1", rec))

	got, err := n.LoadMetadata(ctx, "LOCAL1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestGeography(t *testing.T) {
	var logs bytes.Buffer
	n := newClient(t, newService(t), "0xKEY", &logs)

	assert.Equal(t, []string{"1946157124"}, n.GetLADCodes("Leeds", "Atlantis"))
	assert.Equal(t, "1245710411...1245710412", n.GetGeoCodes(context.Background(), n.GetLADCodes("Leeds"), MSOA))
}
