package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerSummarizesDataset(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.DatasetGeneration.Set(3)
	m.DatasetRecords.WithLabelValues("regions").Set(18)
	m.DatasetRecords.WithLabelValues("communes").Set(34955)

	srv := NewServer(0, reg)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "generation: 3\n")
	assert.Contains(t, body, "records:\n  communes: 34955\n  regions: 18\n")

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dataset_records{kind="communes"} 34955`)
}

func TestServerUnknownPath(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(0, prometheus.NewRegistry()).Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
