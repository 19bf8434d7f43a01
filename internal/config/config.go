package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-io-social/pkg/config"
	"github.com/weiawesome/wes-io-social/pkg/database"
	"github.com/weiawesome/wes-io-social/pkg/middleware"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
	"github.com/weiawesome/wes-io-social/pkg/storage"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Auth       AuthConfig
	Events     pubsub.Config
	Kafka      KafkaConfig
	Storage    storage.Config
	Reconciler ReconcilerConfig
	Profile    ProfileConfig
	RateLimit  middleware.RateLimitConfig `mapstructure:"rate_limit"`
	Log        LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the store. Driver is one of postgres, mysql,
// sqlite (GORM), mongo, or memory.
type DatabaseConfig struct {
	database.Config `mapstructure:",squash"`
	Mongo           database.MongoConfig `mapstructure:"mongo"`
	QueryTimeout    time.Duration        `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Driver     string        `mapstructure:"driver"` // redis, memory
	Prefix     string        `mapstructure:"prefix"`
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
	OpTimeout  time.Duration `mapstructure:"op_timeout"`
	MemorySize int           `mapstructure:"memory_size"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

// KafkaConfig configures the avatar-processed consumer.
type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	AvatarTopic string `mapstructure:"avatar_topic"`
	GroupID     string `mapstructure:"group_id"`
}

type ReconcilerConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type ProfileConfig struct {
	RecentPostsLimit int `mapstructure:"recent_posts_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if err := pkgconfig.BindEnvs(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "social")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/social.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.query_timeout", "3s")
	v.SetDefault("database.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongo.database", "social")
	v.SetDefault("database.mongo.max_pool_size", 100)
	v.SetDefault("database.mongo.connect_timeout", "10s")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.prefix", "social")
	v.SetDefault("cache.profile_ttl", "5m")
	v.SetDefault("cache.op_timeout", "200ms")
	v.SetDefault("cache.memory_size", 10000)

	v.SetDefault("auth.access_ttl", "24h")
	v.SetDefault("auth.issuer", "wes-io-social")

	v.SetDefault("events.driver", "none")
	v.SetDefault("events.topic", "social-events")
	v.SetDefault("events.kafka.brokers", "localhost:9092")
	v.SetDefault("events.kafka.partitions", 4)
	v.SetDefault("events.redis.address", "localhost:6379")
	v.SetDefault("events.redis.pool_size", 10)
	v.SetDefault("events.redis.read_timeout", "3s")
	v.SetDefault("events.redis.write_timeout", "3s")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.avatar_topic", "avatar-processed")
	v.SetDefault("kafka.group_id", "social-service")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./data/media")
	v.SetDefault("storage.local.base_url", "/media")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "avatars")

	v.SetDefault("reconciler.interval", "60s")
	v.SetDefault("reconciler.batch_size", 100)

	v.SetDefault("profile.recent_posts_limit", 5)

	v.SetDefault("rate_limit.rps", 5)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.ttl", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

var envBindings = map[string]string{
	"server.port":                  "PORT",
	"database.driver":              "DB_DRIVER",
	"database.host":                "DB_HOST",
	"database.port":                "DB_PORT",
	"database.user":                "DB_USER",
	"database.password":            "DB_PASSWORD",
	"database.dbname":              "DB_NAME",
	"database.sslmode":             "DB_SSLMODE",
	"database.file_path":           "DB_FILE_PATH",
	"database.query_timeout":       "DB_QUERY_TIMEOUT",
	"database.mongo.uri":           "MONGO_URI",
	"database.mongo.database":      "MONGO_DATABASE",
	"redis.address":                "REDIS_ADDRESS",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"cache.driver":                 "CACHE_DRIVER",
	"cache.profile_ttl":            "CACHE_PROFILE_TTL",
	"auth.jwt_secret":              "JWT_SECRET",
	"auth.access_ttl":              "JWT_ACCESS_TTL",
	"events.driver":                "EVENTS_DRIVER",
	"events.topic":                 "EVENTS_TOPIC",
	"events.kafka.brokers":         "KAFKA_BROKERS",
	"kafka.brokers":                "KAFKA_BROKERS",
	"kafka.avatar_topic":           "KAFKA_AVATAR_TOPIC",
	"kafka.group_id":               "KAFKA_GROUP_ID",
	"storage.driver":               "STORAGE_DRIVER",
	"storage.s3.endpoint":          "S3_ENDPOINT",
	"storage.s3.bucket":            "S3_BUCKET",
	"storage.s3.access_key_id":     "S3_ACCESS_KEY_ID",
	"storage.s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
	"storage.s3.public_url":        "S3_PUBLIC_URL",
	"reconciler.interval":          "RECONCILER_INTERVAL",
	"profile.recent_posts_limit":   "PROFILE_RECENT_POSTS_LIMIT",
	"log.level":                    "LOG_LEVEL",
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite", "mongo", "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Cache.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported cache driver: %s", c.Cache.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) is required")
	}
	return nil
}
