package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port  string
	Env   string
	S3    S3Config
	DB    DBConfig
	LLM   LLMConfig
	Gates GateConfig
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type DBConfig struct {
	LicenseDSN string
	AuditDSN   string
}

type LLMConfig struct {
	Model string
}

type GateConfig struct {
	DecryptSlots  int
	DownloadSlots int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:  *port,
		Env:   env,
		S3:    loadS3Config(env),
		DB:    loadDBConfig(),
		LLM:   loadLLMConfig(),
		Gates: loadGateConfig(),
	}, nil
}

func loadS3Config(env string) S3Config {
	return S3Config{
		Endpoint:  resolveS3Endpoint(env),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("BOOKS_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("BOOKS_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("BOOKS_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		UseSSL:    resolveS3UseSSL(env),
	}
}

func resolveS3Endpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("BOOKS_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("BOOKS_S3_ENDPOINT"))
}

func resolveS3UseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("BOOKS_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func loadDBConfig() DBConfig {
	shared := strings.TrimSpace(os.Getenv("PG_DSN"))
	return DBConfig{
		LicenseDSN: firstNonEmpty(strings.TrimSpace(os.Getenv("LICENSE_PG_DSN")), shared),
		AuditDSN:   firstNonEmpty(strings.TrimSpace(os.Getenv("AUDIT_PG_DSN")), shared),
	}
}

func loadLLMConfig() LLMConfig {
	return LLMConfig{
		Model: firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.0-flash"),
	}
}

func loadGateConfig() GateConfig {
	return GateConfig{
		DecryptSlots:  intFromEnv("DECRYPT_SLOTS", 0),
		DownloadSlots: intFromEnv("DOWNLOAD_SLOTS", 0),
	}
}

func intFromEnv(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
