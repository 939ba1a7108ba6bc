package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *Client {
	t.Helper()
	port, err := strconv.Atoi(envOrDefault("GEO_TEST_POSTGRES_PORT", "5432"))
	require.NoError(t, err)
	db, err := New(config.PostgresConfig{
		Host:            envOrDefault("GEO_TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("GEO_TEST_POSTGRES_DATABASE", "geoapi"),
		User:            envOrDefault("GEO_TEST_POSTGRES_USER", "geoapi"),
		Password:        envOrDefault("GEO_TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		Table:           "dataset_snapshots_test",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() {
		db.DB.Exec(`DROP TABLE IF EXISTS ` + db.table)
		db.Close()
	})
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx))

	require.NoError(t, db.PutSnapshots(ctx, map[string][]byte{
		"regions.json": []byte(`[{"code":"52"}]`),
		"pays.json":    []byte(`[]`),
	}))
	payload, err := db.Snapshot(ctx, "regions.json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"code":"52"}]`, string(payload))

	require.NoError(t, db.PutSnapshots(ctx, map[string][]byte{"regions.json": []byte(`[{"code":"11"}]`)}))
	payload, err = db.Snapshot(ctx, "regions.json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"code":"11"}]`, string(payload))

	_, err = db.Snapshot(ctx, "missing.json")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
