package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tjfontaine/polyglot-connectors/internal/auth"
)

func main() {
	dir := flag.String("dir", "./dev-hub", "directory holding hub-private.pem and hub-public.pem")
	principal := flag.String("principal", "", "token principal, e.g. jdoe@acme")
	email := flag.String("email", "", "token email")
	tenant := flag.String("tenant", "", "token tenant")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *principal == "" {
		fmt.Println("Usage: go run ./cmd/keygen -principal jdoe@acme [-email jdoe@acme.example] [-dir ./dev-hub]")
		fmt.Println("Creates a local hub signing key (once) and prints a hub token signed with it")
		os.Exit(1)
	}

	key, err := loadOrCreateKey(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
		Principal: *principal,
		Email:     *email,
		Tenant:    *tenant,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Public key: %s\n", filepath.Join(*dir, "hub-public.pem"))
	fmt.Println("\nServe it and point the connector at it:")
	fmt.Printf("  hub:\n")
	fmt.Printf("    public_key_url: \"http://localhost:9000/hub-public.pem\"\n")
	fmt.Printf("\nAuthorization: Bearer %s\n", token)
}

func loadOrCreateKey(dir string) (*rsa.PrivateKey, error) {
	privPath := filepath.Join(dir, "hub-private.pem")

	raw, err := os.ReadFile(privPath)
	if err == nil {
		return jwt.ParseRSAPrivateKeyFromPEM(raw)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, err
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	if err := os.WriteFile(filepath.Join(dir, "hub-public.pem"), pubPEM, 0o644); err != nil {
		return nil, err
	}
	return key, nil
}
