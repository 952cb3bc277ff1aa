package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/luyenthi/vstep-backend/internal/config"
	"github.com/luyenthi/vstep-backend/internal/database"
	"github.com/luyenthi/vstep-backend/internal/logger"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/repository"
	"github.com/luyenthi/vstep-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	authService := service.NewAuthService(cfg)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Admin User ===")

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Email
	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		return
	}

	hash, err := authService.HashPassword(password)
	if err != nil {
		fmt.Printf("Error: Could not hash password: %v\n", err)
		return
	}

	user := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	}

	if err := userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			fmt.Printf("Error: Email %s is already registered\n", email)
			return
		}
		fmt.Printf("Error: Could not create admin: %v\n", err)
		return
	}

	fmt.Printf("Admin user created successfully (id=%d, email=%s)\n", user.ID, user.Email)
}
