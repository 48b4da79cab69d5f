// Package customer holds the customer directory service backing the
// customer validation responder and the login credential check.
package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/finbank/backend/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// Common errors
var (
	ErrNotFound            = errors.New("customer not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrCustomerDeactivated = errors.New("customer is deactivated")
)

// Customer is a customer directory record.
type Customer struct {
	ID           string
	Email        string
	FullName     string
	Role         string
	PasswordHash string
	Active       bool
}

// Repository is the customer persistence port.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
}

// Service answers customer existence and credential questions.
type Service struct {
	repo Repository
}

// NewService creates a customer Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Lookup answers a "does customer X exist and is it active" validation
// request. A missing customer is a negative answer, not an error;
// only infrastructure failures surface as errors (and become error
// responses on the wire).
func (s *Service) Lookup(ctx context.Context, customerID string) (validation.Result, error) {
	c, err := s.repo.FindByID(ctx, customerID)
	if errors.Is(err, ErrNotFound) {
		return validation.Result{Valid: false}, nil
	}
	if err != nil {
		return validation.Result{}, fmt.Errorf("customer lookup failed: %w", err)
	}

	active := c.Active
	return validation.Result{Valid: true, Active: &active}, nil
}

// Authenticate verifies an email/password pair and returns the matching
// customer. Credential mismatches and unknown emails both map to
// ErrInvalidCredentials so callers cannot probe for registered emails.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Customer, error) {
	c, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("credential lookup failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !c.Active {
		return nil, ErrCustomerDeactivated
	}
	return c, nil
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
