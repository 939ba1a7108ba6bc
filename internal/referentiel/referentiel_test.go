package referentiel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/collection"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/metrics"
)

type fakeLoader struct {
	mu      sync.Mutex
	records map[string][]collection.Record
	fail    map[string]error
	calls   int
}

func (f *fakeLoader) Load(_ context.Context, name string) ([]collection.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	recs, ok := f.records[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, apperrors.ErrNotFound)
	}
	return recs, nil
}

func testFiles() map[Kind]string {
	return map[Kind]string{
		Communes:                   "communes.json",
		CommunesAssocieesDeleguees: "cad.json",
		EPCIs:                      "epci.json",
		Departements:               "departements.json",
		Regions:                    "regions.json",
		Pays:                       "countries.json",
	}
}

func testLoader() *fakeLoader {
	return &fakeLoader{records: map[string][]collection.Record{
		"communes.json": {
			{"code": "44109", "nom": "Nantes", "type": "commune-actuelle", "codeDepartement": "44", "codeRegion": "52", "population": float64(320000)},
			{"code": "44190", "nom": "Saint-Nazaire", "type": "commune-actuelle", "codeDepartement": "44", "codeRegion": "52"},
		},
		"cad.json":          {},
		"epci.json":         {{"code": "244400404", "nom": "Nantes Métropole", "codesDepartements": []any{"44"}, "zone": "metro"}},
		"departements.json": {{"code": "44", "nom": "Loire-Atlantique", "codeRegion": "52", "zone": "metro"}},
		"regions.json":      {{"code": "52", "nom": "Pays de la Loire", "zone": "metro"}},
		"countries.json":    {{"code": "99100", "nom": "France"}},
	}}
}

func TestDefinitionsAreValid(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, len(Kinds))
	for _, kind := range Kinds {
		d, ok := defs[kind]
		require.True(t, ok, kind)
		assert.NoError(t, d.Validate(), kind)
	}
}

func TestCommuneIndexes(t *testing.T) {
	c, err := Definitions()[Communes].Build(nil)
	require.NoError(t, err)
	for _, field := range []string{"nom", "code", "codesPostaux", "codeDepartement", "codeRegion", "contour"} {
		_, ok := c.Index(field)
		assert.True(t, ok, field)
	}
}

func TestFormatOptionsValidation(t *testing.T) {
	assert.NoError(t, FormatOptions{}.validate())
	assert.ErrorIs(t, FormatOptions{Geometries: []string{"centre"}}.validate(), apperrors.ErrInvalidSchema)
	assert.ErrorIs(t, FormatOptions{Geometries: []string{"centre"}, DefaultGeometry: "contour"}.validate(), apperrors.ErrInvalidSchema)
	assert.ErrorIs(t, FieldOptions{Default: []string{"nom"}}.validate(), apperrors.ErrInvalidSchema)
}

func TestCommuneAbbreviationsAndBoost(t *testing.T) {
	c, err := Definitions()[Communes].Build([]collection.Record{
		{"code": "1", "nom": "Saint-Louis", "population": float64(20000)},
		{"code": "2", "nom": "Saint-Louis-de-Montferrand", "population": float64(2000)},
	})
	require.NoError(t, err)
	res := c.Search(collection.Query{"nom": "st louis"})
	require.Len(t, res, 2)
	assert.Equal(t, "1", res[0].Code())
}

func TestRegistryReload(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r, err := NewRegistry(testLoader(), testFiles(), m)
	require.NoError(t, err)
	assert.False(t, r.Ready())
	assert.Nil(t, r.Current())

	snap, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Ready())
	assert.Equal(t, int64(1), snap.Generation)
	assert.Equal(t, 2, snap.Counts()[Communes])
	assert.Equal(t, 0, snap.Counts()[CommunesAssocieesDeleguees])
	assert.Same(t, snap, r.Current())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetGeneration))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DatasetRecords.WithLabelValues("communes")))

	res := snap.Get(EPCIs).Search(collection.Query{"codeDepartement": "44"})
	require.Len(t, res, 1)
	assert.Equal(t, "244400404", res[0].Code())

	assert.Equal(t, map[string]any{"code": "44", "nom": "Loire-Atlantique"}, snap.Enrich(Departements, "44"))
	assert.Nil(t, snap.Enrich(Departements, "99"))
}

func TestRegistryReloadFailureKeepsPrevious(t *testing.T) {
	loader := testLoader()
	r, err := NewRegistry(loader, testFiles(), nil)
	require.NoError(t, err)
	first, err := r.Reload(context.Background())
	require.NoError(t, err)

	loader.fail = map[string]error{"regions.json": errors.New("disk on fire")}
	_, err = r.Reload(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDatasetLoad)
	assert.Same(t, first, r.Current())

	loader.fail = nil
	second, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Generation)
}

func TestRegistryMissingDatasetFails(t *testing.T) {
	files := testFiles()
	files[Communes] = "_"
	r, err := NewRegistry(testLoader(), files, nil)
	require.NoError(t, err)
	_, err = r.Reload(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, r.Ready())
}

func TestRegistryKindWithoutFileServedEmpty(t *testing.T) {
	files := testFiles()
	delete(files, Pays)
	r, err := NewRegistry(testLoader(), files, nil)
	require.NoError(t, err)
	snap, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Get(Pays).Len())
}
