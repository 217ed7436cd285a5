// internal/config/config.go
package config

import (
	"github.com/spf13/viper"

	"payvault-ledger/pkg/db"
)

// RedisConfig holds Redis connection configuration (reconciliation
// duplicate-reference cache and notification publishing).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PolicyConfig holds the eligibility policy knobs consulted by the transfer
// and investment services. Amounts are in the wallet currency's major unit.
type PolicyConfig struct {
	UnverifiedReceiveCap string            // Max single credit an unverified user may receive
	UnverifiedInvestCap  string            // Max single investment for an unverified user
	ProductMinimums      map[string]string // product type -> minimum principal
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	DB         db.Config
	Redis      RedisConfig
	Policy     PolicyConfig
}

// LoadConfig loads configuration from an optional .env file with environment
// variable overrides, and returns an AppConfig instance.
func LoadConfig() (*AppConfig, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // .env is optional; env vars alone are fine

	viper.SetDefault("SERVER_PORT", "8080")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "payvaultdb")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("POLICY_UNVERIFIED_RECEIVE_CAP", "50000")
	viper.SetDefault("POLICY_UNVERIFIED_INVEST_CAP", "100000")

	return &AppConfig{
		ServerPort: viper.GetString("SERVER_PORT"),
		DB: db.Config{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Policy: PolicyConfig{
			UnverifiedReceiveCap: viper.GetString("POLICY_UNVERIFIED_RECEIVE_CAP"),
			UnverifiedInvestCap:  viper.GetString("POLICY_UNVERIFIED_INVEST_CAP"),
			ProductMinimums: map[string]string{
				"savings":       "100",
				"fixed_deposit": "5000",
				"mutual_fund":   "1000",
			},
		},
	}, nil
}
