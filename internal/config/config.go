package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"mindcare-service/internal/models"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Env        string             `yaml:"env" env:"ENV" env-default:"local"`
	Storage    Storage            `yaml:"storage"`
	Redis      Redis              `yaml:"redis"`
	Lock       Lock               `yaml:"lock"`
	Schedule   Schedule           `yaml:"schedule"`
	Therapists []models.Therapist `yaml:"therapists"`
	Kafka      Kafka              `yaml:"kafka"`
	HTTPServer `yaml:"http_server"`
}

type Storage struct {
	// Driver is one of memory, redis or postgres.
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	PostgresDSN string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Lock struct {
	// Driver is local for a single instance or redis when several share storage.
	Driver string        `yaml:"driver" env:"LOCK_DRIVER" env-default:"local"`
	TTL    time.Duration `yaml:"ttl" env:"LOCK_TTL" env-default:"10s"`
	Wait   time.Duration `yaml:"wait" env:"LOCK_WAIT" env-default:"2s"`
}

type Schedule struct {
	WindowDays  int    `yaml:"window_days" env:"SCHEDULE_WINDOW_DAYS" env-default:"30"`
	DayStart    string `yaml:"day_start" env-default:"09:00"`
	DayEnd      string `yaml:"day_end" env-default:"17:00"`
	SlotMinutes int    `yaml:"slot_minutes" env-default:"60"`
	Timezone    string `yaml:"timezone" env:"SCHEDULE_TIMEZONE" env-default:"UTC"`
	RefreshCron string `yaml:"refresh_cron" env:"SCHEDULE_REFRESH_CRON" env-default:"0 0 * * *"`
}

type Kafka struct {
	// Brokers is a comma separated list; empty disables event publishing.
	Brokers string `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic   string `yaml:"topic" env:"KAFKA_TOPIC" env-default:"mindcare.scheduling"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

func (s Schedule) WorkingHours() models.WorkingHours {
	return models.WorkingHours{Start: s.DayStart, End: s.DayEnd, SlotMinutes: s.SlotMinutes}
}

func (s Schedule) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// MustLoad reads the file named by CONFIG_PATH, or config/config.yaml, and
// exits on any error.
func MustLoad() *Config {
	// A missing .env is fine: the variables may come from the environment.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "redis":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Lock.Driver {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown lock driver %q", c.Lock.Driver)
	}

	if _, err := c.Schedule.Location(); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if _, err := c.Schedule.WorkingHours().Slots(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if c.Schedule.WindowDays <= 0 {
		return errors.New("schedule.window_days must be positive")
	}

	return nil
}
