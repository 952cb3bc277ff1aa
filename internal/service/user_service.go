package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/repository"
)

// ErrEmailTaken is returned when registering with an existing email.
var ErrEmailTaken = errors.New("email already registered")

// UserService handles account registration and lookup.
type UserService struct {
	userRepo *repository.UserRepository
	auth     *AuthService
}

// NewUserService creates a new UserService.
func NewUserService(userRepo *repository.UserRepository, auth *AuthService) *UserService {
	return &UserService{userRepo: userRepo, auth: auth}
}

// Register creates a student account and returns it with a fresh token.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.LoginResponse, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         model.RoleStudent,
	}
	if req.TargetLevel != "" {
		lvl := model.ExamLevel(req.TargetLevel)
		user.TargetLevel = &lvl
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// ON CONFLICT DO NOTHING returned no row: the email exists.
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &model.LoginResponse{Token: token, User: *user}, nil
}

// Login validates credentials and returns the user with a fresh token.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &model.LoginResponse{Token: token, User: *user}, nil
}

// GetByID retrieves a user profile.
func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
