package models

import (
	"time"
)

// Account is the billing entity. It carries no key to Customer; the two are
// matched on CompanyName.
type Account struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	CompanyName string `gorm:"index" json:"companyName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Currency    string `gorm:"type:varchar(3);default:'USD'" json:"currency"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Invoice struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AccountID     uint      `gorm:"index;not null" json:"accountId"`
	InvoiceNumber string    `gorm:"type:varchar(50);not null" json:"invoiceNumber"`
	InvoiceDate   time.Time `json:"invoiceDate"`

	Subtotal float64 `gorm:"type:decimal(10,2);not null;default:0" json:"subtotal"`
	Discount float64 `gorm:"type:decimal(10,2);default:0" json:"discount"`
	Tax      float64 `gorm:"type:decimal(10,2);default:0" json:"tax"`
	Total    float64 `gorm:"type:decimal(10,2);not null;default:0" json:"total"`

	PaymentStatus string `gorm:"type:varchar(20);default:'unpaid'" json:"paymentStatus"`
	Notes         string `json:"notes"`

	CreatedAt time.Time `json:"createdAt"`
}

type InvoiceItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	InvoiceID   uint    `gorm:"index;not null" json:"invoiceId"`
	Description string  `gorm:"not null" json:"description"`
	Quantity    int     `gorm:"default:1" json:"quantity"`
	UnitPrice   float64 `gorm:"type:decimal(10,2);not null" json:"unitPrice"`
	TotalPrice  float64 `gorm:"type:decimal(10,2);not null" json:"totalPrice"`
}

type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	InvoiceID uint      `gorm:"index;not null" json:"invoiceId"`
	Amount    float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	Method    string    `gorm:"type:varchar(30)" json:"method"`
	PaidAt    time.Time `json:"paidAt"`
}

type Estimate struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AccountID      uint      `gorm:"index;not null" json:"accountId"`
	EstimateNumber string    `gorm:"type:varchar(50)" json:"estimateNumber"`
	Total          float64   `gorm:"type:decimal(10,2);default:0" json:"total"`
	Status         string    `gorm:"type:varchar(20);default:'draft'" json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Proposal struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"accountId"`
	Title     string    `gorm:"not null" json:"title"`
	Total     float64   `gorm:"type:decimal(10,2);default:0" json:"total"`
	Status    string    `gorm:"type:varchar(20);default:'draft'" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type Contract struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	AccountID uint       `gorm:"index;not null" json:"accountId"`
	Title     string     `gorm:"not null" json:"title"`
	Value     float64    `gorm:"type:decimal(10,2);default:0" json:"value"`
	StartsAt  *time.Time `json:"startsAt"`
	EndsAt    *time.Time `json:"endsAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Deal struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"accountId"`
	Title     string    `gorm:"not null" json:"title"`
	Stage     string    `gorm:"type:varchar(30);default:'new'" json:"stage"`
	Value     float64   `gorm:"type:decimal(10,2);default:0" json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"accountId"`
	Name      string    `gorm:"not null" json:"name"`
	Status    string    `gorm:"type:varchar(20);default:'open'" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type ProjectDiscussion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"index;not null" json:"projectId"`
	Subject   string    `gorm:"not null" json:"subject"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
