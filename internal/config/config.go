package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StoreKind string

const (
	StoreFile     StoreKind = "file"
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)

type Config struct {
	Addr           string
	Dev            bool
	Store          StoreKind
	DataFile       string
	DatabaseURL    string
	AllowedOrigins []string

	BackupDir      string
	BackupInterval time.Duration
	S3Bucket       string
	S3Prefix       string
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	c := Config{
		Addr:           def(getenv("ADDR"), ":5005"),
		Dev:            asBool(getenv("DEV")),
		Store:          StoreKind(strings.ToLower(def(getenv("STORE"), string(StoreFile)))),
		DataFile:       def(getenv("DATA_FILE"), "tournament_data.json"),
		DatabaseURL:    getenv("DATABASE_URL"),
		AllowedOrigins: splitList(def(getenv("ALLOWED_ORIGINS"), "*")),
		BackupDir:      getenv("BACKUP_DIR"),
		S3Bucket:       getenv("S3_BUCKET"),
		S3Prefix:       def(getenv("S3_PREFIX"), "hebocon/backups"),
		S3Endpoint:     getenv("S3_ENDPOINT"),
		S3Region:       def(getenv("S3_REGION"), "auto"),
		S3AccessKey:    getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:    getenv("S3_SECRET_ACCESS_KEY"),
	}

	if v := strings.TrimSpace(getenv("BACKUP_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("BACKUP_INTERVAL %q: want a positive Go duration like 5m", v)
		}
		c.BackupInterval = d
	}

	switch c.Store {
	case StoreFile, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return Config{}, fmt.Errorf("STORE=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE %q (file, postgres, memory)", c.Store)
	}
	return c, nil
}

func def(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func asBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
