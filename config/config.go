package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Delete   DeleteConfig   `mapstructure:"delete"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	SlowRequest    time.Duration `mapstructure:"slow_request"`
}

type DatabaseConfig struct {
	Dialect         string        `mapstructure:"dialect"`
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SegmentsTTL time.Duration `mapstructure:"segments_ttl"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// DeleteConfig controls the customer cascade. With Transactional unset a
// failing step leaves the earlier deletions committed.
type DeleteConfig struct {
	Transactional bool `mapstructure:"transactional"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.slow_request", 200*time.Millisecond)

	v.SetDefault("database.dialect", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.segments_ttl", 5*time.Minute)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "crm")

	v.SetDefault("jwt.secret", "")

	v.SetDefault("delete.transactional", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from the environment. DATABASE_URL maps to
// database.url, DELETE_TRANSACTIONAL to delete.transactional, and so on.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy variable names
	if url := v.GetString("DB_URL"); url != "" && v.GetString("database.url") == "" {
		v.Set("database.url", url)
	}
	if port := v.GetString("PORT"); port != "" {
		v.Set("server.port", port)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return cfg, nil
}
