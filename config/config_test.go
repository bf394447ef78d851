package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  tracking_checked_topic_name: "tracking.checked"
redis:
  host: "localhost"
  port: 6379
dhl:
  api_url: "https://api-eu.dhl.com/track/shipments"
  api_key: "demo"
  daily_limit: 250
  batch_size: 5
trackdesk:
  server_http_addr: ":8080"
  console_http_addr: ":8081"
  api_base_url: "http://localhost:8080/api/v1"
  export_dir: "./exports"
  result_ttl_seconds: 3600
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "tracking.checked", cfg.Kafka.TrackingCheckedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, 250, cfg.DHL.DailyLimit)
	require.Equal(t, "http://localhost:8080/api/v1", cfg.TrackDesk.APIBaseURL)
	require.Equal(t, 3600, cfg.TrackDesk.ResultTTLSeconds)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
