package env

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Env holds the key/value pairs read from the .env file. Process environment
// variables take effect as a fallback so container deployments and tests can
// run without a file.
var Env map[string]string

// SetupEnvFile loads the first .env file found, walking up from the binary's
// working directory. Missing configuration is a startup error.
func SetupEnvFile() {
	candidates := []string{
		".env",
		"../../.env", // from cmd/blockforge or cmd/migrate
		"../../../.env",
	}

	var err error
	for _, path := range candidates {
		Env, err = godotenv.Read(path)
		if err == nil {
			return
		}
	}
	panic("No .env file found in any of the expected locations")
}

func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses an integer setting, returning def on absence or junk.
func GetEnvInt(key string, def int) int {
	raw := GetEnv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
