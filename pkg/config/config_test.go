package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Search.SuggestionLimit)
	assert.Equal(t, 256, cfg.Search.MaxQueryLength)
	assert.Equal(t, 30*time.Second, cfg.Search.CatalogTTL)
	assert.Equal(t, "catalog-changes", cfg.Kafka.Topics.CatalogChanges)
	assert.True(t, cfg.Analytics.Enabled)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
redis:
  enabled: false
search:
  synonymsFile: /etc/storefront/synonyms.yaml
  suggestionLimit: 6
  catalogTTL: 1m
  haystackCache: true
`), 0o600))

	t.Setenv("SP_SERVER_PORT", "9100")
	t.Setenv("SP_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SP_SEARCH_CATALOG_TTL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "/etc/storefront/synonyms.yaml", cfg.Search.SynonymsFile)
	assert.Equal(t, 6, cfg.Search.SuggestionLimit)
	assert.True(t, cfg.Search.HaystackCache)
	assert.Equal(t, 45*time.Second, cfg.Search.CatalogTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5432, cfg.Postgres.Port, "unset fields keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("SP_SEARCH_MAX_QUERY_LENGTH", "0")
	_, err := Load("")
	assert.ErrorContains(t, err, "maxQueryLength")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "storefront", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=storefront sslmode=disable", p.DSN())
}

func TestServerRateLimitAndCORS(t *testing.T) {
	t.Setenv("SP_SERVER_CORS_ORIGINS", "https://shop.example,https://admin.example")
	t.Setenv("SP_SERVER_RATE_LIMIT_RPS", "5.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 5.5, cfg.Server.RateLimit.RequestsPerSecond)

	t.Setenv("SP_SERVER_RATE_LIMIT_RPS", "0")
	_, err = Load("")
	assert.ErrorContains(t, err, "requestsPerSecond")
}

func TestServerTrustedProxies(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.TrustedProxies, "forwarded headers are ignored by default")

	t.Setenv("SP_SERVER_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.9")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.9"}, cfg.Server.TrustedProxies)

	t.Setenv("SP_SERVER_TRUSTED_PROXIES", "10.0.0.0/8,lb.internal")
	_, err = Load("")
	assert.ErrorContains(t, err, "trustedProxies")
}
