package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env never overrides variables already set in the environment
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
