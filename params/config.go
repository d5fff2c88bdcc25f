package params

import (
	"os"

	"github.com/joho/godotenv"
)

// Domain pins the EIP-712 signing domain. Changing any field invalidates
// every signature produced against the old domain.
type Domain struct {
	Name              string
	Version           string
	VerifyingContract string
}

type API struct {
	ListenAddr string
}

type Storage struct {
	// DataDir holds the settlement ledger. Empty means in-memory only.
	DataDir string
}

type Log struct {
	// File receives a JSON copy of the log stream in addition to stdout.
	File string
}

type Config struct {
	Domain  Domain
	API     API
	Storage Storage
	Log     Log
}

func Default() Config {
	return Config{
		Domain: Domain{
			Name:              "SWAP",
			Version:           "2",
			VerifyingContract: "0x0000000000000000000000000000000000000001",
		},
		API: API{
			ListenAddr: ":8080",
		},
		Storage: Storage{
			DataDir: "",
		},
		Log: Log{
			File: "",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Domain.Name = getEnv("DOMAIN_NAME", cfg.Domain.Name)
	cfg.Domain.Version = getEnv("DOMAIN_VERSION", cfg.Domain.Version)
	cfg.Domain.VerifyingContract = getEnv("DOMAIN_CONTRACT", cfg.Domain.VerifyingContract)

	cfg.API.ListenAddr = getEnv("API_LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.Storage.DataDir = getEnv("DATA_DIR", cfg.Storage.DataDir)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
