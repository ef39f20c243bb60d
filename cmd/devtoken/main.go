// Command devtoken mints a bearer token for local testing against the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"udhaar/backend/internal/config"
	"udhaar/backend/internal/httpapi"
	"udhaar/backend/internal/store/memory"
)

func main() {
	user := flag.String("user", "owner", "username placed in the token subject")
	role := flag.String("role", httpapi.RoleOwner, "owner or staff")
	org := flag.String("org", memory.SeedOrgID, "organisation the token is scoped to")
	flag.Parse()

	cfg := config.Load()
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN)

	token, expiresAt, err := auth.IssueToken(*user, *role, *org)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
