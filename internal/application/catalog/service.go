// Package catalog holds the product catalog service backing the
// product-detail validation responder.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/finbank/backend/internal/validation"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the product code is unknown.
var ErrNotFound = errors.New("product not found")

// Product is a catalog record for a bankable product.
type Product struct {
	Code         string
	Name         string
	Type         string
	InterestRate decimal.Decimal
	MonthlyFee   decimal.Decimal
	Active       bool
}

// ProductDetail is the wire shape of a product inside a validation
// response's detail payload.
type ProductDetail struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	InterestRate decimal.Decimal `json:"interestRate"`
	MonthlyFee   decimal.Decimal `json:"monthlyFee"`
}

// Repository is the product persistence port.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Product, error)
	Create(ctx context.Context, p *Product) error
}

// Service answers product-detail validation requests.
type Service struct {
	repo Repository
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Lookup answers a "fetch product details for code Y" validation
// request. An unknown code is a negative answer; infrastructure
// failures surface as errors.
func (s *Service) Lookup(ctx context.Context, code string) (validation.Result, error) {
	p, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return validation.Result{Valid: false}, nil
	}
	if err != nil {
		return validation.Result{}, fmt.Errorf("product lookup failed: %w", err)
	}

	active := p.Active
	return validation.Result{
		Valid:  true,
		Active: &active,
		Detail: ProductDetail{
			Code:         p.Code,
			Name:         p.Name,
			Type:         p.Type,
			InterestRate: p.InterestRate,
			MonthlyFee:   p.MonthlyFee,
		},
	}, nil
}
