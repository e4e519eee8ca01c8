package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/examhub/internal/config"
	"github.com/stemsi/examhub/internal/database"
	"github.com/stemsi/examhub/internal/logger"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/repository"
	"github.com/stemsi/examhub/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "create-admin")

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label)
		s, _ := reader.ReadString('\n')
		return strings.TrimSpace(s)
	}

	fmt.Println("=== Create New Admin User ===")

	login := prompt("Enter Login: ")
	if login == "" {
		fmt.Println("Error: Login is required")
		return
	}

	surname := prompt("Enter Surname: ")
	if surname == "" {
		fmt.Println("Error: Surname is required")
		return
	}
	name := prompt("Enter Name: ")

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// Role and center
	admin := &model.User{
		Login:   login,
		Surname: surname,
		Name:    name,
		Role:    model.RoleSuperAdmin,
	}
	centerID := prompt("Enter Center ID (empty for super admin): ")
	if centerID != "" {
		admin.Role = model.RoleCenterAdmin
		admin.CenterID = &centerID
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	admin.PasswordHash, err = service.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	if err := userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicateLogin) {
			fmt.Printf("Error: login %q is already taken\n", login)
			return
		}
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! %s '%s' created with ID: %s\n", admin.Role, admin.Login, admin.ID)
}
