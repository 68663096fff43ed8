package main

import (
	"log"

	"afiliados_backend/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; deployments inject real environment variables.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	app.Run()
}
