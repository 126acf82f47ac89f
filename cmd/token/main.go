// Command token mints identity tokens for the messaging front end and for
// local testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"cuterank/internal/config"
	"cuterank/internal/security"
)

func main() {
	userID := flag.Int64("user", 0, "user id")
	name := flag.String("name", "", "display name")
	admin := flag.Bool("admin", false, "set the admin role claim")
	flag.Parse()

	if *userID == 0 {
		fmt.Fprintln(os.Stderr, "usage: token -user <id> [-name <name>] [-admin]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Security.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "security.jwtsecret is not set")
		os.Exit(1)
	}

	role := security.RoleUser
	if *admin {
		role = security.RoleAdmin
	}
	tok, err := security.GenerateIdentityToken(cfg.Security.JWTSecret, *userID, *name, role, cfg.Security.TokenTTL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
