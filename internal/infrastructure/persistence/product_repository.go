package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/finbank/backend/internal/application/catalog"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.Repository.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a product repository.
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByCode fetches a product by its code.
func (r *GormProductRepository) FindByCode(ctx context.Context, code string) (*catalog.Product, error) {
	var m ProductModel
	err := r.db.WithContext(ctx).First(&m, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", code, err)
	}
	return &catalog.Product{
		Code:         m.Code,
		Name:         m.Name,
		Type:         m.Type,
		InterestRate: m.InterestRate,
		MonthlyFee:   m.MonthlyFee,
		Active:       m.Active,
	}, nil
}

// Create persists a new product.
func (r *GormProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	m := ProductModel{
		Code:         p.Code,
		Name:         p.Name,
		Type:         p.Type,
		InterestRate: p.InterestRate,
		MonthlyFee:   p.MonthlyFee,
		Active:       p.Active,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Ensure GormProductRepository implements catalog.Repository
var _ catalog.Repository = (*GormProductRepository)(nil)
