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
  waybill_routed_topic_name: "waybill.routed"
redis:
  host: "localhost"
  port: 6379
freightbox:
  http_addr: ":8080"
  storage: "postgres"
  kafka_consumer_group: "freight-api"
  waybill_cache_ttl_seconds: 600
  session_cookie_name: "sessionid"
  action_rate_limit_per_minute: 60
  settlement_department_id: 1
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "waybill.routed", cfg.Kafka.WaybillRoutedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.FreightBox.HTTPAddr)
	require.Equal(t, uint64(1), cfg.FreightBox.SettlementDepartmentID)

	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.ConnString())
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("FREIGHTBOX_DOTENV_TEST=yes\n"), 0o600))
	t.Setenv("FREIGHTBOX_DOTENV_TEST", "")
	require.NoError(t, os.Unsetenv("FREIGHTBOX_DOTENV_TEST"))

	LoadDotEnv(p)
	require.Equal(t, "yes", os.Getenv("FREIGHTBOX_DOTENV_TEST"))

	// отсутствующий файл не ошибка
	LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}
