package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DBUrl          string
	JWTSecret      string
	ToysData       string
	AllowedOrigins string
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, falling back to environment defaults")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	toysData := os.Getenv("TOYS_DATA")
	if toysData == "" {
		toysData = "data/toys.json"
	}

	return Config{
		Port:           port,
		DBUrl:          os.Getenv("DB_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ToysData:       toysData,
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
	}
}
