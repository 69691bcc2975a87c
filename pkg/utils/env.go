package utils

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig reads a .env file (if present) and primes viper with the
// environment. Missing files are not an error; everything has defaults.
func LoadConfig(path string) {
	_ = godotenv.Load(filepath.Join(path, ".env"))

	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	_ = viper.ReadInConfig()
	viper.AutomaticEnv()
}
