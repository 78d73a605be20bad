package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
env: "dev"
therapists:
  - id: "T1"
    name: "Dr. John Smith"
    active: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "local", cfg.Lock.Driver)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 30, cfg.Schedule.WindowDays)
	assert.Equal(t, "0 0 * * *", cfg.Schedule.RefreshCron)
	assert.Equal(t, "localhost:8080", cfg.Address)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)

	hours := cfg.Schedule.WorkingHours()
	assert.Equal(t, "09:00", hours.Start)
	assert.Equal(t, "17:00", hours.End)
	assert.Equal(t, 60, hours.SlotMinutes)

	require.Len(t, cfg.Therapists, 1)
	assert.True(t, cfg.Therapists[0].Active)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("SCHEDULE_TIMEZONE", "Europe/Berlin")

	cfg, err := Load(writeConfig(t, `env: "prod"`))
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "kafka:9092", cfg.Kafka.Brokers)

	loc, err := cfg.Schedule.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"unknown storage":  "storage:\n  driver: \"mongo\"\n",
		"postgres w/o dsn": "storage:\n  driver: \"postgres\"\n",
		"unknown lock":     "lock:\n  driver: \"etcd\"\n",
		"bad timezone":     "schedule:\n  timezone: \"Mars/Olympus\"\n",
		"bad hours":        "schedule:\n  day_start: \"18:00\"\n  day_end: \"09:00\"\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRepositoryConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Therapists, 3)
}
