// Command token-generator mints bearer tokens for local development and
// operational access to the task API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/taskvault/taskvault-api/internal/config"
	"github.com/taskvault/taskvault-api/internal/service/auth"
)

func main() {
	_ = godotenv.Load()

	userFlag := flag.String("user", "", "principal UUID (default: a fresh UUID)")
	adminFlag := flag.Bool("admin", false, "grant the admin role")
	secretFlag := flag.String("secret", os.Getenv("TASKVAULT_AUTH_JWT_SECRET"), "JWT signing secret")
	lifetimeFlag := flag.Int("lifetime", 60, "token lifetime in minutes")
	flag.Parse()

	userID := uuid.New()
	if *userFlag != "" {
		parsed, err := uuid.Parse(*userFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -user value: %v\n", err)
			os.Exit(1)
		}
		userID = parsed
	}

	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            *secretFlag,
		TokenLifetimeMinutes: *lifetimeFlag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize JWT service: %v\n", err)
		os.Exit(1)
	}

	token, err := jwtService.GenerateToken(context.Background(), userID, *adminFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Principal: %s\nAdmin: %v\nToken: %s\n", userID, *adminFlag, token)
}
