package config

import (
	"flag"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"` // local, dev, prod
	LogLevel   string           `yaml:"log_level" env:"LOG_LEVEL"`         // пусто: уровень по окружению
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Orders     OrdersConfig     `yaml:"orders"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string        `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL time.Duration `yaml:"token_ttl" env-default:"30m"`
}

type MigrationsConfig struct {
	Path  string `yaml:"path" env-default:"./migrations"`
	Table string `yaml:"table" env-default:"migrations"`
}

// RedisConfig — кэш заказов. Пустой адрес отключает кэш.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env-default:"0"`
	OrderTTL time.Duration `yaml:"order_ttl" env-default:"5m"`
}

// KafkaConfig — публикация событий заказов
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env-default:"orders.events"`
	Service string   `yaml:"service" env-default:"sweet-shop"`
}

type OrdersConfig struct {
	TxTimeout time.Duration `yaml:"tx_timeout" env-default:"5s"`
}

// URL собирает адрес БД, логин и пароль экранируются
func (d DatabaseConfig) URL() *url.URL {
	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
}

// DSN собирает строку подключения для lib/pq
func (d DatabaseConfig) DSN() string {
	return d.URL().String()
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}
