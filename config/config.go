package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/morf1ng/105site/logutils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		Mode        string   `yaml:"mode"`
		CORSOrigins []string `yaml:"corsOrigins"`
		DebugRoutes bool     `yaml:"debugRoutes"`
	} `yaml:"server"`
	Postgres struct {
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		DBName   string `yaml:"dbname"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode"`
		TimeZone string `yaml:"TimeZone"`
	} `yaml:"postgres"`
	Auth struct {
		AccessTokenSecret       string `yaml:"accessTokenSecret"`
		RefreshTokenSecret      string `yaml:"refreshTokenSecret"`
		AccessTokenExpiryMinute int    `yaml:"accessTokenExpiryMinute"`
		RefreshTokenExpiryHour  int    `yaml:"refreshTokenExpiryHour"`
	} `yaml:"auth"`
	Uploads struct {
		Dir            string `yaml:"dir"`
		SweepCron      string `yaml:"sweepCron"`
		SweepGraceHour int    `yaml:"sweepGraceHour"`
	} `yaml:"uploads"`
	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttlSeconds"`
	} `yaml:"redis"`
	RateLimit struct {
		LoginPerSecond float64 `yaml:"loginPerSecond"`
		LoginBurst     int     `yaml:"loginBurst"`
	} `yaml:"rateLimit"`
	Bootstrap struct {
		AdminEmail    string `yaml:"adminEmail"`
		AdminPassword string `yaml:"adminPassword"`
		AdminFullname string `yaml:"adminFullname"`
	} `yaml:"bootstrap"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

const defaultConfigPath = "./etc/config.yaml"

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

// initConfig reads the file named by CONFIG_PATH (./etc/config.yaml when unset).
// A missing file is not an error: defaults and environment variables still apply.
func initConfig() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := Load(path)
	if err != nil {
		logutils.Log.Error("init config", err)
		panic(err)
	}
	return cfg
}

// Load builds a Config from the YAML file at path, the process environment
// (a .env file in the working directory is loaded first) and built-in defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logutils.Log.Warn("load .env: ", err)
	}

	cfg := &Config{}
	if path != "" {
		err := readConfig(path, cfg)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func readConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

func applyEnv(cfg *Config) {
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setString(&cfg.Auth.AccessTokenSecret, "SECRET_KEY")
	setString(&cfg.Auth.RefreshTokenSecret, "REFRESH_SECRET_KEY")
	setString(&cfg.Server.Addr, "SERVER_ADDR")
	setString(&cfg.Uploads.Dir, "UPLOADS_DIR")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Bootstrap.AdminEmail, "ADMIN_EMAIL")
	setString(&cfg.Bootstrap.AdminPassword, "ADMIN_PASSWORD")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Auth.AccessTokenExpiryMinute = n
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == "" {
		cfg.Postgres.Port = "5432"
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.TimeZone == "" {
		cfg.Postgres.TimeZone = "UTC"
	}
	if cfg.Auth.AccessTokenExpiryMinute <= 0 {
		cfg.Auth.AccessTokenExpiryMinute = 30
	}
	if cfg.Auth.RefreshTokenExpiryHour <= 0 {
		cfg.Auth.RefreshTokenExpiryHour = 168
	}
	if cfg.Auth.RefreshTokenSecret == "" {
		cfg.Auth.RefreshTokenSecret = cfg.Auth.AccessTokenSecret
	}
	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = "uploads"
	}
	if cfg.Uploads.SweepGraceHour <= 0 {
		cfg.Uploads.SweepGraceHour = 24
	}
	if cfg.Redis.TTLSeconds <= 0 {
		cfg.Redis.TTLSeconds = 300
	}
	if cfg.RateLimit.LoginPerSecond <= 0 {
		cfg.RateLimit.LoginPerSecond = 1
	}
	if cfg.RateLimit.LoginBurst <= 0 {
		cfg.RateLimit.LoginBurst = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
