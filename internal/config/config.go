package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	DBDriver   string
	DbHost     string
	DbPort     string
	DbUser     string
	DbPassword string
	DbName     string
	SQLitePath string

	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CacheEnabled     bool
	CacheMaxAge      time.Duration
	CacheMaxBlockLag uint64
	CachePolicyFile  string
	StatsTimeout     time.Duration
	FallbackTimeout  time.Duration

	RPCURL           string
	RegistryAddress  string
	RPCTimeout       time.Duration
	RPCMaxRetries    uint64
	ChainConcurrency int

	SyncInterval  time.Duration
	SyncInProcess bool

	SnapshotEnabled  bool
	SnapshotInterval time.Duration
	MinioEndpoint    string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioUseSSL      bool
	MinioBucket      string
	SnapshotPrefix   string

	JwtSecret   string
	Issuer      string
	CORSOrigins []string
}

// PolicyFile is the YAML overlay for the cache policy. Absent keys keep the
// values loaded from the environment.
type PolicyFile struct {
	Enabled     *bool   `yaml:"enabled"`
	MaxAge      *string `yaml:"max_age"`
	MaxBlockLag *uint64 `yaml:"max_block_lag"`
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		GinMode:    getEnv("GIN_MODE", "release"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DbHost:     getEnv("DB_HOST", "localhost"),
		DbPort:     getEnv("DB_PORT", "5432"),
		DbUser:     getEnv("DB_USER", "postgres"),
		DbPassword: getEnv("DB_PASSWORD", "password"),
		DbName:     getEnv("DB_NAME", "chainjobs"),
		SQLitePath: getEnv("SQLITE_PATH", "chainjobs.db"),

		CacheBackend:  getEnv("CACHE_BACKEND", "sql"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		CachePolicyFile: getEnv("CACHE_POLICY_FILE", ""),
		RPCURL:          getEnv("RPC_URL", "http://localhost:8545"),
		RegistryAddress: getEnv("JOB_REGISTRY_ADDRESS", ""),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minio"),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", "minio123"),
		MinioBucket:    getEnv("MINIO_BUCKET", "chainjobs-snapshots"),
		SnapshotPrefix: getEnv("SNAPSHOT_PREFIX", "snapshots"),

		JwtSecret:   getEnv("JWT_SECRET", "defaultsecret"),
		Issuer:      getEnv("ISSUER", "chainjob-cache"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ChainConcurrency, err = getInt("CHAIN_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.CacheEnabled, err = getBool("CACHE_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.SyncInProcess, err = getBool("SYNC_IN_PROCESS", false); err != nil {
		return nil, err
	}
	if cfg.SnapshotEnabled, err = getBool("SNAPSHOT_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.MinioUseSSL, err = getBool("MINIO_USE_SSL", false); err != nil {
		return nil, err
	}
	if cfg.CacheMaxAge, err = getDuration("CACHE_MAX_AGE", 45*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatsTimeout, err = getDuration("STATS_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.FallbackTimeout, err = getDuration("FALLBACK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SnapshotInterval, err = getDuration("SNAPSHOT_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RPCTimeout, err = getDuration("RPC_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = getDuration("SYNC_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheMaxBlockLag, err = getUint("CACHE_MAX_BLOCK_LAG", 0); err != nil {
		return nil, err
	}
	if cfg.RPCMaxRetries, err = getUint("RPC_MAX_RETRIES", 3); err != nil {
		return nil, err
	}

	if cfg.CachePolicyFile != "" {
		if _, statErr := os.Stat(cfg.CachePolicyFile); statErr == nil {
			if err := cfg.ApplyPolicyFile(cfg.CachePolicyFile); err != nil {
				return nil, err
			}
		}
	}

	return cfg, cfg.Validate()
}

// Validate rejects combinations the services cannot start with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.CacheBackend {
	case "sql", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.CacheMaxAge <= 0 {
		return fmt.Errorf("CACHE_MAX_AGE must be positive")
	}
	if c.ChainConcurrency <= 0 {
		return fmt.Errorf("CHAIN_CONCURRENCY must be positive")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}
	if c.SnapshotEnabled && c.SnapshotInterval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive")
	}
	return nil
}

// ApplyPolicyFile overlays the cache policy keys found in a YAML file.
func (c *Config) ApplyPolicyFile(path string) error {
	p, err := ReadPolicyFile(path)
	if err != nil {
		return err
	}
	if p.Enabled != nil {
		c.CacheEnabled = *p.Enabled
	}
	if p.MaxAge != nil {
		d, err := time.ParseDuration(*p.MaxAge)
		if err != nil {
			return fmt.Errorf("policy file %s: max_age: %w", path, err)
		}
		c.CacheMaxAge = d
	}
	if p.MaxBlockLag != nil {
		c.CacheMaxBlockLag = *p.MaxBlockLag
	}
	return nil
}

func ReadPolicyFile(path string) (*PolicyFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var p PolicyFile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return &p, nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DbHost,
		c.DbPort,
		c.DbUser,
		c.DbPassword,
		c.DbName,
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getUint(key string, fallback uint64) (uint64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
