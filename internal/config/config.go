package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Env        string   `yaml:"env" env:"ENV" env-default:"local"`
	Storage    Storage  `yaml:"storage"`
	Database   Database `yaml:"database"`
	Redis      Redis    `yaml:"redis"`
	HTTPServer `yaml:"http_server"`
	Auth       Auth    `yaml:"auth"`
	Loader     Loader  `yaml:"loader"`
	GraphQL    GraphQL `yaml:"graphql"`
	CORS       CORS    `yaml:"cors"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type Database struct {
	Host            string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	DBName          string        `yaml:"dbname" env:"DB_NAME" env-default:"events"`
	SSLMode         string        `yaml:"sslmode" env-default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env-default:"5m"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
	PoolSize int    `yaml:"pool_size" env-default:"10"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8000"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Auth struct {
	Secret     string        `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL   time.Duration `yaml:"token_ttl" env-default:"1h"`
	BcryptCost int           `yaml:"bcrypt_cost" env-default:"12"`
}

// Loader tunes the per-request batching cache.
type Loader struct {
	Wait     time.Duration `yaml:"wait" env-default:"2ms"`
	MaxBatch int           `yaml:"max_batch" env-default:"100"`
}

// GraphQL.MaxParallelism is raised to Loader.MaxBatch when it is lower.
type GraphQL struct {
	MaxParallelism int `yaml:"max_parallelism" env-default:"100"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env-default:"http://localhost:3000"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return &cfg
}
