// Command devtoken prints an HS256 session token for local development,
// signed with the JWT_SECRET the server is configured with.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		id    = flag.String("id", "", "user id (token subject)")
		email = flag.String("email", "", "user email")
		name  = flag.String("name", "", "display name")
		photo = flag.String("photo", "", "photo URL")
		ttl   = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}
	token, err := verifier.IssueToken(auth.Identity{ID: *id, Email: *email, DisplayName: *name, PhotoURL: *photo}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
