package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/referentiel"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/metrics"
)

type fakeRegistry struct {
	snap *referentiel.Snapshot
	defs map[referentiel.Kind]referentiel.Definition
}

func (f *fakeRegistry) Current() *referentiel.Snapshot { return f.snap }

func (f *fakeRegistry) Definition(kind referentiel.Kind) (referentiel.Definition, bool) {
	d, ok := f.defs[kind]
	return d, ok
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.LookupEvent
}

func (r *recordingTracker) Track(e analytics.LookupEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func square(minX, minY, maxX, maxY float64) collection.Geometry {
	return collection.Geometry{T: geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{minX, minY}, {minX, maxY}, {maxX, maxY}, {maxX, minY}, {minX, minY}},
	})}
}

func point(x, y float64) collection.Geometry {
	return collection.Geometry{T: geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{x, y})}
}

func fixtures() map[referentiel.Kind][]collection.Record {
	return map[referentiel.Kind][]collection.Record{
		referentiel.Communes: {
			{
				"code": "44109", "nom": "Nantes", "type": "commune-actuelle",
				"codeDepartement": "44", "codeRegion": "52", "codeEpci": "244400404",
				"codesPostaux": []any{"44000", "44100"}, "population": float64(320000), "zone": "metro",
				"contour": square(0, 0, 10, 10), "centre": point(5, 5),
			},
			{
				"code": "44184", "nom": "Saint-Nazaire", "type": "commune-actuelle",
				"codeDepartement": "44", "codeRegion": "52", "codeEpci": "244400644",
				"codesPostaux": []any{"44600"}, "population": float64(72000), "zone": "metro",
				"contour": square(20, 0, 30, 10), "centre": point(25, 5),
			},
			{
				"code": "29001", "nom": "Argol", "type": "commune-actuelle",
				"codeDepartement": "29", "codeRegion": "53", "zone": "metro",
			},
			{
				"code": "75101", "nom": "Paris 1er Arrondissement", "type": "arrondissement-municipal",
				"codeDepartement": "75", "codeRegion": "11", "zone": "metro",
			},
		},
		referentiel.EPCIs: {
			{"code": "244400404", "nom": "Nantes Métropole", "codesDepartements": []any{"44"}, "codesRegions": []any{"52"}, "zone": "metro"},
		},
		referentiel.Departements: {
			{"code": "44", "nom": "Loire-Atlantique", "codeRegion": "52", "zone": "metro"},
			{"code": "75", "nom": "Paris", "codeRegion": "11", "zone": "metro"},
		},
		referentiel.Regions: {
			{"code": "52", "nom": "Pays de la Loire", "zone": "metro"},
			{"code": "11", "nom": "Île-de-France", "zone": "metro"},
		},
		referentiel.Pays: {
			{"code": "99100", "nom": "France", "iso2": "FR", "iso3": "FRA"},
		},
	}
}

func newRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	defs := referentiel.Definitions()
	data := fixtures()
	built := make(map[referentiel.Kind]*collection.Collection, len(referentiel.Kinds))
	for _, kind := range referentiel.Kinds {
		c, err := defs[kind].Build(data[kind])
		require.NoError(t, err)
		built[kind] = c
	}
	return &fakeRegistry{snap: referentiel.NewSnapshot(1, built), defs: defs}
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	for _, kind := range referentiel.Kinds {
		mux.HandleFunc("GET /"+string(kind), h.List(kind))
		mux.HandleFunc("GET /"+string(kind)+"/{code}", h.ByCode(kind))
	}
	mux.HandleFunc("GET /epcis/{code}/communes", h.Children(referentiel.EPCIs, referentiel.Communes, "codeEpci"))
	mux.HandleFunc("GET /departements/{code}/communes", h.Children(referentiel.Departements, referentiel.Communes, "codeDepartement"))
	mux.HandleFunc("GET /regions/{code}/departements", h.Children(referentiel.Regions, referentiel.Departements, "codeRegion"))
	mux.HandleFunc("GET /cache/stats", h.CacheStats)
	mux.HandleFunc("POST /cache/invalidate", h.CacheInvalidate)
	return mux
}

func get(t *testing.T, mux http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	return list
}

func codesOf(list []map[string]any) []string {
	out := make([]string, len(list))
	for i, item := range list {
		out[i], _ = item["code"].(string)
	}
	return out
}

func TestListCommunes(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	tests := []struct {
		name  string
		url   string
		codes []string
	}{
		{"default type", "/communes", []string{"44109", "44184", "29001"}},
		{"explicit type", "/communes?type=arrondissement-municipal", []string{"75101"}},
		{"type list", "/communes?type=arrondissement-municipal,commune-actuelle&codeDepartement=75", []string{"75101"}},
		{"postal code", "/communes?codePostal=44100", []string{"44109"}},
		{"departement", "/communes?codeDepartement=44", []string{"44109", "44184"}},
		{"epci", "/communes?codeEpci=244400644", []string{"44184"}},
		{"point", "/communes?lat=5&lon=25", []string{"44184"}},
		{"point outside", "/communes?lat=50&lon=50", []string{}},
		{"invalid point ignored", "/communes?lat=95&lon=5", []string{"44109", "44184", "29001"}},
		{"unknown param ignored", "/communes?foo=bar", []string{"44109", "44184", "29001"}},
		{"name", "/communes?nom=saint%20naz", []string{"44184"}},
		{"limit", "/communes?limit=1", []string{"44109"}},
		{"limit zero", "/communes?limit=0", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.codes, codesOf(decodeList(t, get(t, mux, tt.url))))
		})
	}
}

func TestListDefaultFields(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	list := decodeList(t, get(t, mux, "/communes?code=44109"))
	require.Len(t, list, 1)
	assert.Equal(t, map[string]any{
		"code": "44109", "nom": "Nantes", "codeDepartement": "44", "codeRegion": "52",
		"codesPostaux": []any{"44000", "44100"}, "population": float64(320000),
	}, list[0])
}

func TestListByNameAddsScore(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	list := decodeList(t, get(t, mux, "/communes?nom=nantes&fields=code"))
	require.Len(t, list, 1)
	assert.Equal(t, "Nantes", list[0]["nom"])
	assert.Contains(t, list[0], collection.ScoreField)
	assert.NotContains(t, list[0], "population")
}

func TestListRejectsBadRequests(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	for _, target := range []string{
		"/communes?limit=-1",
		"/communes?limit=abc",
		"/communes?format=geojson",
		"/communes?fields=nom,contour",
		"/epcis?format=geojson",
		"/epcis/244400404/communes?limit=x",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, mux, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Type       string         `json:"type"`
		Geometry   map[string]any `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func decodeFeatures(t *testing.T, rec *httptest.ResponseRecorder) featureCollection {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fc featureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	return fc
}

func TestListGeoJSON(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	fc := decodeFeatures(t, get(t, mux, "/communes?codeDepartement=44&format=geojson&fields=nom,contour,centre"))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Feature", fc.Features[0].Type)
	assert.Equal(t, "Point", fc.Features[0].Geometry["type"])
	assert.Equal(t, []any{float64(5), float64(5)}, fc.Features[0].Geometry["coordinates"])
	assert.Equal(t, map[string]any{"nom": "Nantes", "code": "44109"}, fc.Features[0].Properties)

	fc = decodeFeatures(t, get(t, mux, "/communes?code=44109&format=geojson&geometry=contour"))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry["type"])

	fc = decodeFeatures(t, get(t, mux, "/communes?code=29001&format=geojson&geometry=unknown"))
	require.Len(t, fc.Features, 1)
	assert.Nil(t, fc.Features[0].Geometry)

	fc = decodeFeatures(t, get(t, mux, "/communes?code=00000&format=geojson"))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Empty(t, fc.Features)
}

func TestGeoJSONFallsBackToJSONWithoutGeometries(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	list := decodeList(t, get(t, mux, "/departements?format=geojson"))
	assert.Equal(t, []string{"44", "75"}, codesOf(list))
}

func TestContourAsJSONField(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	list := decodeList(t, get(t, mux, "/communes?code=44109&fields=contour"))
	require.Len(t, list, 1)
	contour, ok := list[0]["contour"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Polygon", contour["type"])
}

func TestByCode(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	rec := get(t, mux, "/communes/44109?fields=nom,departement,region")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"nom": "Nantes", "code": "44109",
		"departement": {"code": "44", "nom": "Loire-Atlantique"},
		"region": {"code": "52", "nom": "Pays de la Loire"}
	}`, rec.Body.String())

	rec = get(t, mux, "/communes/29001?fields=departement")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nom": "Argol", "code": "29001", "departement": {}}`, rec.Body.String())

	// the default type does not apply to lookups by code
	rec = get(t, mux, "/communes/75101?fields=type")
	assert.JSONEq(t, `{"nom": "Paris 1er Arrondissement", "code": "75101", "type": "arrondissement-municipal"}`, rec.Body.String())

	rec = get(t, mux, "/communes/44109?format=geojson")
	assert.JSONEq(t, `{
		"type": "Feature",
		"geometry": {"type": "Point", "coordinates": [5, 5]},
		"properties": {"nom": "Nantes", "code": "44109", "codeDepartement": "44", "codeRegion": "52", "codesPostaux": ["44000", "44100"], "population": 320000}
	}`, rec.Body.String())

	rec = get(t, mux, "/pays/99100")
	assert.JSONEq(t, `{"nom": "France", "code": "99100", "iso2": "FR", "iso3": "FRA"}`, rec.Body.String())

	rec = get(t, mux, "/communes/00000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "communes 00000 not found"}`, rec.Body.String())
}

func TestChildren(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	assert.Equal(t, []string{"44109"}, codesOf(decodeList(t, get(t, mux, "/epcis/244400404/communes"))))
	assert.Equal(t, []string{"44109", "44184"}, codesOf(decodeList(t, get(t, mux, "/departements/44/communes"))))
	assert.Equal(t, []string{"44109"}, codesOf(decodeList(t, get(t, mux, "/departements/44/communes?limit=1"))))
	assert.Equal(t, []string{"44"}, codesOf(decodeList(t, get(t, mux, "/regions/52/departements"))))
	// arrondissements are excluded by the default type
	assert.Empty(t, decodeList(t, get(t, mux, "/departements/75/communes")))

	for _, target := range []string{"/epcis/000/communes", "/departements/99/communes", "/regions/99/departements"} {
		assert.Equal(t, http.StatusNotFound, get(t, mux, target).Code, target)
	}
}

func TestUnavailableBeforeFirstLoad(t *testing.T) {
	reg := newRegistry(t)
	reg.snap = nil
	mux := newMux(New(reg, nil, nil, nil))

	rec := get(t, mux, "/communes")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error": "dataset not loaded"}`, rec.Body.String())
}

func TestCachedLookupsAndTracking(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c, err := cache.New(config.CacheConfig{TTL: time.Minute}, nil, m)
	require.NoError(t, err)
	defer c.Close()
	tracker := &recordingTracker{}
	mux := newMux(New(newRegistry(t), c, tracker, m))

	first := get(t, mux, "/communes?codeDepartement=44")
	c.Wait()
	second := get(t, mux, "/communes?codeDepartement=44")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int64(1), c.Stats().Hits)

	require.Len(t, tracker.events, 2)
	assert.False(t, tracker.events[0].CacheHit)
	assert.True(t, tracker.events[1].CacheHit)
	assert.Equal(t, 2, tracker.events[1].Returned)
	assert.Equal(t, "communes", tracker.events[1].Kind)
	assert.Equal(t, map[string]string{"codeDepartement": "44"}, tracker.events[1].Criteria)
	assert.Equal(t, "GET /communes", tracker.events[1].Route)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.LookupsTotal.WithLabelValues("communes", "hit")))

	get(t, mux, "/communes/00000")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LookupsTotal.WithLabelValues("communes", "error")))
	assert.Len(t, tracker.events, 2)

	rec := get(t, mux, "/cache/stats")
	assert.JSONEq(t, `{"hits": 1, "misses": 2, "total": 3, "hit_rate": "33.33%"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	get(t, mux, "/communes?codeDepartement=44")
	assert.False(t, tracker.events[len(tracker.events)-1].CacheHit)
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	mux := newMux(New(newRegistry(t), nil, nil, nil))

	assert.JSONEq(t, `{"status": "disabled"}`, get(t, mux, "/cache/stats").Body.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheEntryRoundTrip(t *testing.T) {
	l, err := decodeEntry(encodeEntry(lookup{body: []byte(`[1,2]`), returned: 300}))
	require.NoError(t, err)
	assert.Equal(t, 300, l.returned)
	assert.Equal(t, `[1,2]`, string(l.body))

	_, err = decodeEntry(nil)
	assert.Error(t, err)
}
