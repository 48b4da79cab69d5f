package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finbank/backend/internal/application/account"
	"github.com/finbank/backend/internal/infrastructure/persistence"
	"github.com/finbank/backend/internal/interfaces/http/middleware"
)

// AccountHandler serves the account opening operation, the caller of
// the cross-service validation path.
type AccountHandler struct {
	accounts *account.Service
	logger   *zap.Logger
}

// NewAccountHandler creates the handler.
func NewAccountHandler(accounts *account.Service, l *zap.Logger) *AccountHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AccountHandler{accounts: accounts, logger: l.Named("account")}
}

// Register mounts the account routes.
func (h *AccountHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/accounts", h.Open)
	rg.GET("/accounts/:id", h.Get)
	rg.GET("/accounts", h.List)
}

type openAccountRequest struct {
	CustomerID  string `json:"customer_id" binding:"required,uuid"`
	ProductCode string `json:"product_code" binding:"required"`
}

type accountResponse struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	CustomerID  string `json:"customer_id"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	Balance     string `json:"balance"`
	Status      string `json:"status"`
}

func toAccountResponse(a *account.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Number:      a.Number,
		CustomerID:  a.CustomerID,
		ProductCode: a.ProductCode,
		ProductName: a.ProductName,
		Balance:     a.Balance.StringFixed(2),
		Status:      a.Status,
	}
}

// Open validates the customer and product against their owning services
// and persists the account. Validation timeouts answer 504: the outcome
// is unknown and the client may retry.
func (h *AccountHandler) Open(c *gin.Context) {
	if c.GetString(middleware.ContextAuthSubject) == "" {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req openAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "customer_id (uuid) and product_code are required")
		return
	}

	opened, err := h.accounts.Open(c.Request.Context(), account.OpenInput{
		CustomerID:  req.CustomerID,
		ProductCode: req.ProductCode,
	})
	switch {
	case errors.Is(err, account.ErrCustomerNotFound),
		errors.Is(err, account.ErrProductNotFound):
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, account.ErrCustomerInactive):
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, account.ErrValidationTimeout):
		respondError(c, http.StatusGatewayTimeout, "validation timed out, retry later")
		return
	case errors.Is(err, account.ErrValidationFailed):
		respondError(c, http.StatusBadGateway, "validation failed upstream")
		return
	case err != nil:
		h.logger.Error("account opening failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "account opening failed")
		return
	}

	c.JSON(http.StatusCreated, toAccountResponse(opened))
}

// Get returns one account by id.
func (h *AccountHandler) Get(c *gin.Context) {
	a, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, persistence.ErrAccountNotFound) {
		respondError(c, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		h.logger.Error("account fetch failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "account fetch failed")
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(a))
}

// List returns the authenticated customer's accounts.
func (h *AccountHandler) List(c *gin.Context) {
	subject := c.GetString(middleware.ContextAuthSubject)
	if subject == "" {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	accounts, err := h.accounts.ListByCustomer(c.Request.Context(), subject)
	if err != nil {
		h.logger.Error("account list failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "account list failed")
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}
