// Package config holds the environment helpers shared by the service
// configs.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	awspkg "github.com/yashrajoria/checkout-saga/pkg/aws"
)

// LoadDotEnv loads a .env file when present. Real environment variables win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func GetEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func GetBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func GetInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// PostgresConfig is the connection block every service carries.
type PostgresConfig struct {
	User     string
	Password string
	DB       string
	Host     string
	Port     string
	SSLMode  string
	TimeZone string
}

func LoadPostgres() PostgresConfig {
	return PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		DB:       os.Getenv("POSTGRES_DB"),
		Host:     GetEnv("POSTGRES_HOST", "localhost"),
		Port:     GetEnv("POSTGRES_PORT", "5432"),
		SSLMode:  GetEnv("POSTGRES_SSLMODE", "disable"),
		TimeZone: GetEnv("POSTGRES_TIMEZONE", "UTC"),
	}
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		p.Host, p.User, p.Password, p.DB, p.Port, p.SSLMode, p.TimeZone,
	)
}

func (p PostgresConfig) Validate() error {
	if p.User == "" || p.Password == "" || p.DB == "" {
		return fmt.Errorf("missing required POSTGRES_USER, POSTGRES_PASSWORD or POSTGRES_DB")
	}
	return nil
}

// SecretReader is satisfied by *awspkg.SecretsClient.
type SecretReader interface {
	GetSecretJSON(ctx context.Context, name string, v any) error
}

var _ SecretReader = (*awspkg.SecretsClient)(nil)

type dbSecret struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	DBName   string `json:"dbname"`
}

// ApplyDBSecret overrides credentials from a Secrets Manager JSON secret.
// Empty secret fields leave the env value in place.
func (p *PostgresConfig) ApplyDBSecret(ctx context.Context, secrets SecretReader, name string) error {
	var s dbSecret
	if err := secrets.GetSecretJSON(ctx, name, &s); err != nil {
		return err
	}
	if s.Username != "" {
		p.User = s.Username
	}
	if s.Password != "" {
		p.Password = s.Password
	}
	if s.Host != "" {
		p.Host = s.Host
	}
	if s.DBName != "" {
		p.DB = s.DBName
	}
	return nil
}
