package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
	// AuthRPS/AuthBurst throttle /auth per client IP; 0 disables.
	AuthRPS   float64 `mapstructure:"auth_rps"`
	AuthBurst int     `mapstructure:"auth_burst"`
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Rotate struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level  string
	JSON   bool
	Rotate Rotate
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// CodeCacheTTLSec caches positive referral-code checks; 0 disables the cache.
	CodeCacheTTLSec int `mapstructure:"code_cache_ttl_sec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Store selects the backing store of the user directory: memory | gorm | redis.
type Store struct {
	Driver    string
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Admin holds bootstrap credentials. Password is applied to admin_1 on
// startup when that account has no password yet.
type Admin struct {
	Password string
}

type Config struct {
	App   App
	Log   Log
	JWT   JWT
	DB    DB
	Redis Redis `mapstructure:"redis"`
	Store Store
	Admin Admin
}

func Load(path string) *Config {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config: %v", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("unmarshal config: %v", err)
	}
	return &c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "empire-mine")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.auth_rps", 5.0)
	v.SetDefault("app.http.auth_burst", 10)
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("admin.password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.issuer", "empire-mine")
	v.SetDefault("jwt.accesstokenttlmin", 120)
	v.SetDefault("store.driver", "gorm")
	v.SetDefault("store.key_prefix", "empire_mine:")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "empire_mine.db")
	v.SetDefault("db.automigrate", true)
}
