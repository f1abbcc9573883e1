// Package main provides role management utilities for reviewers and admins.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/traveldairy2025nju/td-backend/internal/config"
	"github.com/traveldairy2025nju/td-backend/internal/database"
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/repository"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin/main.go set-role <user_id> <user|reviewer|admin>  - Change a user's role")
	fmt.Println("  go run ./cmd/admin/main.go list-staff                               - List reviewers and admins")
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

	ctx := context.Background()
	switch os.Args[1] {
	case "set-role":
		if len(os.Args) < 4 {
			usage()
		}
		setRole(ctx, repository.NewUserRepository(db), os.Args[2], os.Args[3])
	case "list-staff":
		listStaff(db)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func setRole(ctx context.Context, users repository.UserRepository, rawID, rawRole string) {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil || id == 0 {
		fmt.Printf("Invalid user ID %q\n", rawID)
		os.Exit(1)
	}

	role := models.Role(rawRole)
	switch role {
	case models.RoleUser, models.RoleReviewer, models.RoleAdmin:
	default:
		fmt.Printf("Unknown role %q\n", rawRole)
		os.Exit(1)
	}

	user, err := users.GetByID(ctx, uint(id))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			fmt.Printf("User with ID %d not found\n", id)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}
	if user.Role == role {
		fmt.Printf("User %s (ID: %d) already has role %s\n", user.Username, user.ID, role)
		return
	}

	if err := users.UpdateRole(ctx, user.ID, role); err != nil {
		log.Fatalf("Failed to update role: %v", err)
	}
	fmt.Printf("✅ %s (ID: %d) is now %s (was %s)\n", user.Username, user.ID, role, user.Role)
}

func listStaff(db *gorm.DB) {
	var staff []models.User
	if err := db.Where("role IN ?", []models.Role{models.RoleReviewer, models.RoleAdmin}).
		Order("role, id").Find(&staff).Error; err != nil {
		log.Fatalf("Failed to fetch staff: %v", err)
	}

	if len(staff) == 0 {
		fmt.Println("No reviewers or admins found")
		return
	}

	fmt.Println("\n📋 Moderation staff:")
	fmt.Println("─────────────────────────────────────")
	for _, u := range staff {
		fmt.Printf("ID: %d | Username: %s | Role: %s\n", u.ID, u.Username, u.Role)
	}
	fmt.Println("─────────────────────────────────────")
}
