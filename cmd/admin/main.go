// Package main provides admin management utilities for Daily Shot.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"dailyshot/internal/config"
	"dailyshot/internal/database"
	"dailyshot/internal/repository"
	"dailyshot/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <email>   - Grant admin rights")
	fmt.Println("  go run ./cmd/admin demote <email>    - Revoke admin rights")
	fmt.Println("  go run ./cmd/admin sync              - Promote every account listed in ADMIN_EMAILS")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	users := service.NewUserService(repository.NewUserRepository(db), cfg.AdminEmailList())
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			usage()
		}
		admin := command == "promote"
		user, err := users.SetAdminByEmail(ctx, os.Args[2], admin)
		if err != nil {
			log.Fatalf("Failed to %s %s: %v", command, os.Args[2], err)
		}
		if admin {
			fmt.Printf("User %s (ID: %d) is now an admin\n", user.Email, user.ID)
		} else {
			fmt.Printf("User %s (ID: %d) is no longer an admin\n", user.Email, user.ID)
		}

	case "sync":
		n, err := users.SyncAdmins(ctx)
		if err != nil {
			log.Fatalf("Failed to sync admins: %v", err)
		}
		fmt.Printf("Promoted %d account(s)\n", n)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
	}
}
