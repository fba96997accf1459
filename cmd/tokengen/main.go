// Package main generates bearer tokens for local testing of the docucred API.
// Tokens are signed with JWT_SIGNING_KEY (or the development key) and will
// only be accepted by a server configured with the same key and issuer.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "docucred/internal/jwt_token"
	"docucred/internal/platform/config"
	id "docucred/pkg/domain"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	TokenType string            `json:"token_type"`
	ExpiresAt string            `json:"expires_at"`
	Claims    map[string]string `json:"claims"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	cfg := config.FromEnv()

	userID := flag.String("user-id", "", "User ID (UUID). Generated if empty.")
	username := flag.String("username", "dev-user", "Username claim")
	ttl := flag.Duration("ttl", cfg.TokenTTL, "Token time-to-live")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Usage = printUsage
	flag.Parse()

	uid, err := parseOrGenerate(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -user-id: %v\n", err)
		os.Exit(1)
	}

	svc := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.TokenIssuer, *ttl)
	issued, err := svc.GenerateAccessToken(uid, *username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	keyType := "configured"
	if cfg.UsesDevSigningKey() {
		keyType = "dev"
	}

	if *jsonOutput {
		printJSON(tokenOutput{
			Token:     issued.Token,
			TokenType: "Bearer",
			ExpiresAt: issued.ExpiresAt.UTC().Format(time.RFC3339),
			Claims: map[string]string{
				"user_id":  uid.String(),
				"username": *username,
				"iss":      cfg.TokenIssuer,
			},
			Usage: map[string]string{
				"header":      "Authorization: Bearer <token>",
				"signing_key": keyType,
			},
		})
		return
	}

	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Signing Key: %s\n", keyType)
	fmt.Printf("Issuer:      %s\n", cfg.TokenIssuer)
	fmt.Printf("Expires At:  %s\n", issued.ExpiresAt.UTC().Format(time.RFC3339))
	fmt.Printf("User ID:     %s\n", uid)
	fmt.Printf("Username:    %s\n", *username)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(issued.Token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/ocr/<imageHash>")
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `tokengen - Generate test tokens for the docucred API

Reads JWT_SIGNING_KEY, TOKEN_ISSUER and TOKEN_TTL like the server does.
The user need not exist: document routes only check the token, while
/auth/me also looks the account up.

Usage:
  tokengen [flags]

Flags:`)
	flag.PrintDefaults()
}

func parseOrGenerate(value string) (id.UserID, error) {
	if value == "" {
		return id.NewUserID(), nil
	}
	return id.ParseUserID(value)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
