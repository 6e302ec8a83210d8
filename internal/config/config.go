package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	. "gungnir/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const envPrefix = "GUNGNIR_"

type Config struct {
	Address   string
	Port      int
	Workers   uint
	LogLevel  zerolog.Level
	PriceRule PriceRule
	// Symbols get a book at startup. Any other symbol still gets one on first
	// use.
	Symbols []string
}

func Default() Config {
	return Config{
		Address:   "0.0.0.0",
		Port:      9001,
		Workers:   10,
		LogLevel:  zerolog.InfoLevel,
		PriceRule: SellPrice,
	}
}

// LoadFromEnv loads configuration from a .env file and the environment.
// Priority: ENV > .env file > defaults. With an empty envPath ./.env is read if
// present; a named envPath must exist.
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// ./.env is optional; a file asked for by name is not.
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return cfg, fmt.Errorf("loading %s: %w", envPath, err)
		}
	} else {
		_ = godotenv.Load()
	}

	if v := lookup("ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := lookup("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return cfg, fmt.Errorf("%sPORT: invalid port %q", envPrefix, v)
		}
		cfg.Port = port
	}
	if v := lookup("WORKERS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return cfg, fmt.Errorf("%sWORKERS: invalid worker count %q", envPrefix, v)
		}
		cfg.Workers = uint(n)
	}
	if v := lookup("LOG_LEVEL"); v != "" {
		level, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return cfg, fmt.Errorf("%sLOG_LEVEL: %w", envPrefix, err)
		}
		cfg.LogLevel = level
	}
	if v := lookup("PRICE_RULE"); v != "" {
		rule, err := ParsePriceRule(strings.ToLower(v))
		if err != nil {
			return cfg, fmt.Errorf("%sPRICE_RULE: %w", envPrefix, err)
		}
		cfg.PriceRule = rule
	}
	if v := lookup("SYMBOLS"); v != "" {
		cfg.Symbols = SplitSymbols(v)
	}

	return cfg, nil
}

// SplitSymbols parses a comma separated symbol list, dropping blanks.
func SplitSymbols(s string) []string {
	var symbols []string
	for _, symbol := range strings.Split(s, ",") {
		if symbol = strings.TrimSpace(symbol); symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}
