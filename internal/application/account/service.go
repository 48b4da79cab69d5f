// Package account implements account opening, the operation that drives
// the cross-service validation correlator: before an account is
// persisted, the customer service is asked whether the customer exists
// and is active, and the pricing service is asked for product details.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finbank/backend/internal/application/catalog"
	"github.com/finbank/backend/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrCustomerNotFound  = errors.New("customer does not exist")
	ErrCustomerInactive  = errors.New("customer is not active")
	ErrProductNotFound   = errors.New("product does not exist")
	ErrValidationFailed  = errors.New("peer validation failed")
	ErrValidationTimeout = errors.New("peer validation timed out")
)

// defaultCallTimeout bounds one correlator call.
const defaultCallTimeout = 3 * time.Second

// Account is an opened account.
type Account struct {
	ID          string
	Number      string
	CustomerID  string
	ProductCode string
	ProductName string
	Balance     decimal.Decimal
	Status      string
}

// Repository is the account persistence port.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Account, error)
}

// Caller issues one correlated validation call. Satisfied by
// *validation.Correlator.
type Caller interface {
	Call(ctx context.Context, subjectRef string, timeout time.Duration) (*validation.Response, error)
}

// Service opens accounts after validating their customer and product
// against the owning services.
type Service struct {
	repo        Repository
	customers   Caller
	products    Caller
	callTimeout time.Duration
}

// NewService creates an account Service. A non-positive callTimeout
// falls back to the default.
func NewService(repo Repository, customers, products Caller, callTimeout time.Duration) *Service {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Service{
		repo:        repo,
		customers:   customers,
		products:    products,
		callTimeout: callTimeout,
	}
}

// OpenInput is the account opening request.
type OpenInput struct {
	CustomerID  string
	ProductCode string
}

// Open validates the customer and product via the correlator, then
// persists the account. A correlator timeout means "we don't know", not
// "the peer said no", and is surfaced as ErrValidationTimeout so the
// caller can retry with a fresh request.
func (s *Service) Open(ctx context.Context, input OpenInput) (*Account, error) {
	custResp, err := s.customers.Call(ctx, input.CustomerID, s.callTimeout)
	if err != nil {
		return nil, s.callError("customer", err)
	}
	if custResp.Failed() {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, custResp.Error)
	}
	if !custResp.Valid {
		return nil, ErrCustomerNotFound
	}
	if custResp.Active != nil && !*custResp.Active {
		return nil, ErrCustomerInactive
	}

	prodResp, err := s.products.Call(ctx, input.ProductCode, s.callTimeout)
	if err != nil {
		return nil, s.callError("product", err)
	}
	if prodResp.Failed() {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, prodResp.Error)
	}
	if !prodResp.Valid {
		return nil, ErrProductNotFound
	}

	var detail catalog.ProductDetail
	if len(prodResp.Detail) > 0 {
		if err := json.Unmarshal(prodResp.Detail, &detail); err != nil {
			return nil, fmt.Errorf("%w: undecodable product detail", ErrValidationFailed)
		}
	}

	account := &Account{
		ID:          uuid.New().String(),
		Number:      newAccountNumber(),
		CustomerID:  input.CustomerID,
		ProductCode: input.ProductCode,
		ProductName: detail.Name,
		Balance:     decimal.Zero,
		Status:      "ACTIVE",
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to persist account: %w", err)
	}
	return account, nil
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	return s.repo.FindByID(ctx, id)
}

// ListByCustomer lists a customer's accounts.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]*Account, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *Service) callError(domain string, err error) error {
	if errors.Is(err, validation.ErrTimeout) {
		return fmt.Errorf("%w: %s validation", ErrValidationTimeout, domain)
	}
	return fmt.Errorf("%s validation call failed: %w", domain, err)
}

// newAccountNumber derives an opaque account number from a fresh UUID.
func newAccountNumber() string {
	id := uuid.New()
	return fmt.Sprintf("FB-%010d", uint64(id.ID())%1e10)
}
