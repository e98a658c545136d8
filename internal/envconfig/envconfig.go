// Package envconfig reads the environment variables of the example programs.
package envconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-autoid/logger"
)

// Reader and simulator defaults.
const (
	DefaultReaderHost     = "127.0.0.1"
	DefaultReaderPort     = 5678
	DefaultReconnectDelay = 100 * time.Millisecond
)

// Config holds the settings shared by the bridge and simulator programs.
type Config struct {
	ReaderHost     string
	ReaderPort     int
	ReconnectDelay time.Duration
	LogLevel       logger.Level

	NATSURL    string
	NATSPrefix string
	RedisURL   string
	HTTPAddr   string

	AutoReadInterval time.Duration
	AutoReadData     string
	AutoReadRSSI     int
}

// Load reads Config from the environment. Unset or malformed values fall back to defaults.
func Load() *Config {
	return &Config{
		ReaderHost:     GetEnv("READER_HOST", DefaultReaderHost),
		ReaderPort:     GetEnvAsInt("READER_SIMULATOR_PORT", DefaultReaderPort),
		ReconnectDelay: GetEnvAsMillis("READER_RECONNECT_MS", DefaultReconnectDelay),
		LogLevel:       logger.LevelFromEnv(os.Getenv("LOG_LEVEL"), os.Getenv("VERBOSE_LOG")),

		NATSURL:    os.Getenv("NATS_URL"),
		NATSPrefix: GetEnv("NATS_PREFIX", "autoid.scanner"),
		RedisURL:   os.Getenv("REDIS_URL"),
		HTTPAddr:   os.Getenv("HTTP_ADDR"),

		AutoReadInterval: GetEnvAsMillis("SIM_AUTO_READ_MS", 0),
		AutoReadData:     GetEnv("SIM_DATA", "3034257BF7194E4000000001"),
		AutoReadRSSI:     GetEnvAsInt("SIM_RSSI", -52),
	}
}

// GetEnv returns the trimmed value of key, or defaultValue when it is unset or blank.
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	return defaultValue
}

// GetEnvAsInt returns key parsed as an integer, or defaultValue.
func GetEnvAsInt(key string, defaultValue int) int {
	if value := GetEnv(key, ""); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}

	return defaultValue
}

// GetEnvAsMillis returns key parsed as a non-negative number of milliseconds, or defaultValue.
func GetEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	if value := GetEnv(key, ""); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}

	return defaultValue
}
