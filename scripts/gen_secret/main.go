package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// Generates a 256-bit secret for API_SECRET (request signing) or
// JWT_SECRET (session tokens). Run once per secret.
func main() {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	secret := hex.EncodeToString(bytes)

	fmt.Println("=== New Secure Secret Generated ===")
	fmt.Println(secret)
	fmt.Println("=====================================")
	fmt.Println("1. Copy this secret to your .env or Secret Manager (API_SECRET=... or JWT_SECRET=...)")
	fmt.Println("2. Provide the API secret to the client service via a SECURE channel.")
	fmt.Println("3. DO NOT share this over Slack or Email without encryption.")
}
