package config

import (
	"strings"
	"time"
)

// StorageBackend selects where the console keeps its session.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
)

const defaultSessionTTL = 12 * time.Hour

type Storage struct{}

var _ StorageConfig = Storage{}

// ParseStorageBackend falls back to file for unknown values, so a console
// session survives between commands.
func ParseStorageBackend(s string) StorageBackend {
	switch b := StorageBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case StorageMemory, StorageRedis:
		return b
	default:
		return StorageFile
	}
}

func (Storage) GetStorageBackend() StorageBackend {
	return ParseStorageBackend(GetEnv("STORAGE_BACKEND", string(StorageFile)))
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "kestra-console")
}

// GetTokenFile is empty unless TOKEN_FILE is set; the file store then uses
// its default location.
func (Storage) GetTokenFile() string {
	return GetEnv("TOKEN_FILE", "")
}

func (Storage) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(GetEnv("SESSION_TTL", ""))
	if err != nil || d <= 0 {
		return defaultSessionTTL
	}
	return d
}
