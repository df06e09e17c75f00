// Package config loads node configuration from environment variables,
// optionally preloaded from a .env file, mirroring the env-var-with-
// defaults shape used elsewhere in the pack this module draws from.
package config

import (
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds every option the core and its adapters recognize.
type Config struct {
	Pair              string
	PricePrecision    int32
	QuantityPrecision int32
	PeerID            string
	HTTPAddr          string
	LogLevel          string
}

// Load reads configuration from the environment, first attempting to
// preload a .env file in the working directory (a missing file is not an
// error — the process may simply be configured by its real environment).
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	pair := os.Getenv("ORDERBOOK_PAIR")
	if pair == "" {
		return Config{}, &MissingPairError{}
	}

	return Config{
		Pair:              pair,
		PricePrecision:    int32(getEnvInt("PRICE_PRECISION", 2)),
		QuantityPrecision: int32(getEnvInt("QUANTITY_PRECISION", 8)),
		PeerID:            getEnv("PEER_ID", uuid.NewString()),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}, nil
}

// MissingPairError is returned by Load when ORDERBOOK_PAIR is unset, since
// the pair is the one required option (spec.md §6: "required, non-empty
// string").
type MissingPairError struct{}

func (e *MissingPairError) Error() string {
	return "ORDERBOOK_PAIR is required"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
