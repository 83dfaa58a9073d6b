package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Keys     KeysConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Audit    AuditConfig
	Worker   WorkerConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	ShutdownPeriod time.Duration `mapstructure:"shutdownPeriod"`
	CORSOrigins    []string      `mapstructure:"corsOrigins"`
}

type KeysConfig struct {
	DefaultDurationHours int `mapstructure:"defaultDurationHours"`
	DefaultMaxUses       int `mapstructure:"defaultMaxUses"`
}

type AuthConfig struct {
	AdminTokens []string      `mapstructure:"adminTokens"`
	JWTSecret   string        `mapstructure:"jwtSecret"`
	JWTTTL      time.Duration `mapstructure:"jwtTTL"`
	JWTIssuer   string        `mapstructure:"jwtIssuer"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address was configured. Without Redis the
// task queue is disabled and audit events are written synchronously.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

const (
	AuditSinkNone     = "none"
	AuditSinkFile     = "file"
	AuditSinkPostgres = "postgres"
)

type AuditConfig struct {
	Sink     string `mapstructure:"sink"`
	FilePath string `mapstructure:"filePath"`
}

type WorkerConfig struct {
	Concurrency         int    `mapstructure:"concurrency"`
	StatsReportSchedule string `mapstructure:"statsReportSchedule"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables and config file")
	}

	v := viper.New()

	v.SetDefault("server.port", "8000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.shutdownPeriod", 15*time.Second)
	v.SetDefault("server.corsOrigins", []string{"*"})

	v.SetDefault("keys.defaultDurationHours", 24)
	v.SetDefault("keys.defaultMaxUses", 1)

	v.SetDefault("auth.adminTokens", []string{})
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.jwtTTL", 1*time.Hour)
	v.SetDefault("auth.jwtIssuer", "key-service-api")

	v.SetDefault("database.url", "")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 2)
	v.SetDefault("database.connMaxLifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("audit.sink", AuditSinkFile)
	v.SetDefault("audit.filePath", "key_events.log")

	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.statsReportSchedule", "@every 1h")

	v.SetDefault("log.level", "info")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("Warning: could not read config file: %s. Error: %v\n", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Auth.AdminTokens = splitList(cfg.Auth.AdminTokens)
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	return &cfg, nil
}

// splitList accepts both YAML lists and comma separated env values
// (AUTH_ADMINTOKENS=a,b).
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
