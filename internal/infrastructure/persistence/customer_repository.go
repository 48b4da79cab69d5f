package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/finbank/backend/internal/application/customer"
	"gorm.io/gorm"
)

// GormCustomerRepository implements customer.Repository.
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a customer repository.
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID fetches a customer by id.
func (r *GormCustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	var m CustomerModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, customer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query customer %s: %w", id, err)
	}
	return customerFromModel(&m), nil
}

// FindByEmail fetches a customer by email.
func (r *GormCustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	var m CustomerModel
	err := r.db.WithContext(ctx).First(&m, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, customer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query customer by email: %w", err)
	}
	return customerFromModel(&m), nil
}

// Create persists a new customer.
func (r *GormCustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	m := CustomerModel{
		ID:           c.ID,
		Email:        c.Email,
		FullName:     c.FullName,
		Role:         c.Role,
		PasswordHash: c.PasswordHash,
		Active:       c.Active,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func customerFromModel(m *CustomerModel) *customer.Customer {
	return &customer.Customer{
		ID:           m.ID,
		Email:        m.Email,
		FullName:     m.FullName,
		Role:         m.Role,
		PasswordHash: m.PasswordHash,
		Active:       m.Active,
	}
}

// Ensure GormCustomerRepository implements customer.Repository
var _ customer.Repository = (*GormCustomerRepository)(nil)
