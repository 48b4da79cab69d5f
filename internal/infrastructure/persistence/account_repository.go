package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/finbank/backend/internal/application/account"
	"gorm.io/gorm"
)

// ErrAccountNotFound indicates an unknown account id.
var ErrAccountNotFound = errors.New("account not found")

// GormAccountRepository implements account.Repository.
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates an account repository.
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// Create persists a new account.
func (r *GormAccountRepository) Create(ctx context.Context, a *account.Account) error {
	m := AccountModel{
		ID:          a.ID,
		Number:      a.Number,
		CustomerID:  a.CustomerID,
		ProductCode: a.ProductCode,
		ProductName: a.ProductName,
		Balance:     a.Balance,
		Status:      a.Status,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// FindByID fetches an account by id.
func (r *GormAccountRepository) FindByID(ctx context.Context, id string) (*account.Account, error) {
	var m AccountModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account %s: %w", id, err)
	}
	return accountFromModel(&m), nil
}

// ListByCustomer lists all accounts owned by a customer.
func (r *GormAccountRepository) ListByCustomer(ctx context.Context, customerID string) ([]*account.Account, error) {
	var models []AccountModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for customer %s: %w", customerID, err)
	}

	accounts := make([]*account.Account, 0, len(models))
	for i := range models {
		accounts = append(accounts, accountFromModel(&models[i]))
	}
	return accounts, nil
}

func accountFromModel(m *AccountModel) *account.Account {
	return &account.Account{
		ID:          m.ID,
		Number:      m.Number,
		CustomerID:  m.CustomerID,
		ProductCode: m.ProductCode,
		ProductName: m.ProductName,
		Balance:     m.Balance,
		Status:      m.Status,
	}
}

// Ensure GormAccountRepository implements account.Repository
var _ account.Repository = (*GormAccountRepository)(nil)
