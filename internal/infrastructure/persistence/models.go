package persistence

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerModel is the customers table.
type CustomerModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	FullName     string
	Role         string `gorm:"not null;default:USER"`
	PasswordHash string `gorm:"not null"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the default table name.
func (CustomerModel) TableName() string { return "customers" }

// ProductModel is the products table.
type ProductModel struct {
	Code         string          `gorm:"primaryKey"`
	Name         string          `gorm:"not null"`
	Type         string          `gorm:"not null"`
	InterestRate decimal.Decimal `gorm:"type:numeric(8,4)"`
	MonthlyFee   decimal.Decimal `gorm:"type:numeric(12,2)"`
	Active       bool            `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the default table name.
func (ProductModel) TableName() string { return "products" }

// AccountModel is the accounts table.
type AccountModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Number      string `gorm:"uniqueIndex;not null"`
	CustomerID  string `gorm:"type:uuid;index;not null"`
	ProductCode string `gorm:"index;not null"`
	ProductName string
	Balance     decimal.Decimal `gorm:"type:numeric(16,2)"`
	Status      string          `gorm:"not null;default:ACTIVE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the default table name.
func (AccountModel) TableName() string { return "accounts" }
