package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/coopaguas/backend/internal/infrastructure/auth"
	"github.com/coopaguas/backend/internal/infrastructure/config"
	"github.com/google/uuid"
)

// Mints an operator token for the HTTP API. The cooperative has no
// self-service signup; operators receive their tokens out of band.
func main() {
	var (
		operatorID string
		name       string
		role       string
	)

	flag.StringVar(&operatorID, "operator", "", "Operator UUID (generated when omitted)")
	flag.StringVar(&name, "name", "", "Operator display name")
	flag.StringVar(&role, "role", string(auth.RoleCashier), "Role: admin or cashier")
	flag.Parse()

	if name == "" {
		fmt.Fprintln(os.Stderr, "operator name is required (-name)")
		flag.Usage()
		os.Exit(1)
	}

	var r auth.Role
	switch auth.Role(role) {
	case auth.RoleAdmin, auth.RoleCashier:
		r = auth.Role(role)
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q, expected admin or cashier\n", role)
		os.Exit(1)
	}

	id := uuid.New()
	if operatorID != "" {
		parsed, err := uuid.Parse(operatorID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid operator UUID: %v\n", err)
			os.Exit(1)
		}
		id = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	token, expiresAt, err := auth.NewJWTService(cfg.JWT).GenerateToken(id, name, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("operator_id:", id)
	fmt.Println("role:       ", r)
	fmt.Println("expires_at: ", expiresAt.Format(time.RFC3339))
	fmt.Println("token:      ", token)
}
