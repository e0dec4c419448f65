package main

import (
	"fmt"
	"os"
	"time"

	"flowtrack/internal/auth"
	"flowtrack/internal/config"

	"github.com/spf13/pflag"
)

func main() {
	var (
		userID   = pflag.Int64("user", 1, "User ID")
		email    = pflag.String("email", "john@example.com", "Email carried in the token")
		expiry   = pflag.Duration("expiry", 24*time.Hour, "Token lifetime")
		secret   = pflag.String("secret", "", "JWT secret (overrides JWT_SECRET env var)")
		issuer   = pflag.String("issuer", "", "JWT issuer (overrides JWT_ISS env var)")
		audience = pflag.String("audience", "", "JWT audience (overrides JWT_AUD env var)")
	)
	pflag.Parse()

	cfg := config.Load()
	if *secret != "" {
		cfg.JWTSecret = *secret
	}
	if *issuer != "" {
		cfg.JWTIssuer = *issuer
	}
	if *audience != "" {
		cfg.JWTAudience = *audience
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, *expiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "jwtgen: %v\n", err)
		os.Exit(1)
	}

	token, err := jwtManager.GenerateToken(*userID, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jwtgen: failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User ID: %d\n", *userID)
	fmt.Printf("Email: %s\n", *email)
	fmt.Printf("Expiry: %s\n", *expiry)
	fmt.Printf("Issuer: %s\n", cfg.JWTIssuer)
	fmt.Printf("Audience: %s\n", cfg.JWTAudience)
	fmt.Printf("\nToken:\n%s\n\n", token)
	fmt.Printf("curl -H \"Authorization: Bearer %s\" %s/assets\n", token, cfg.APIBaseURL)
}
