package service

import (
	"strings"
	"testing"
	"time"

	"github.com/luyenthi/vstep-backend/internal/config"
	"github.com/luyenthi/vstep-backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService() *AuthService {
	return NewAuthService(&config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newAuthService()

	token, err := svc.GenerateToken(42, model.RoleStudent)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Role != model.RoleStudent {
		t.Errorf("expected role student, got %s", claims.Role)
	}
	if claims.ID == "" {
		t.Error("token should carry a jti")
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	svc := newAuthService()

	token, err := svc.GenerateToken(42, model.RoleStudent)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	parts := strings.Split(token, ".")
	parts[1] = parts[1][:len(parts[1])-2] + "xx"
	if _, err := svc.ValidateToken(strings.Join(parts, ".")); err == nil {
		t.Fatal("tampered token should not validate")
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := newAuthService().GenerateToken(42, model.RoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := NewAuthService(&config.Config{JWTSecret: "different", JWTExpiry: time.Hour})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret should not validate")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService(&config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: -time.Minute,
	})

	token, err := svc.GenerateToken(42, model.RoleStudent)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expired token should not validate")
	}
}

func TestPasswordHashAndCheck(t *testing.T) {
	svc := newAuthService()

	hash, err := svc.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal the plaintext")
	}

	if err := svc.CheckPassword(hash, "s3cret-pass"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := svc.CheckPassword(hash, "wrong-pass"); err == nil {
		t.Error("wrong password accepted")
	}
}
