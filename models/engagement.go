package models

import (
	"time"
)

type Interaction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"index;not null" json:"customerId"`
	Kind       string    `gorm:"type:varchar(20)" json:"kind"` // call, email, meeting
	Summary    string    `gorm:"type:text" json:"summary"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Lead is matched to a Customer by name only: either the constructed full
// name or the company name.
type Lead struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FirstName   string    `gorm:"not null;default:''" json:"firstName"`
	LastName    string    `gorm:"not null;default:''" json:"lastName"`
	CompanyName string    `gorm:"not null;default:''" json:"companyName"`
	Email       string    `json:"email"`
	Status      string    `gorm:"type:varchar(20);default:'new'" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CoachingProgram struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CustomerID uint       `gorm:"index;not null" json:"customerId"`
	Name       string     `gorm:"not null" json:"name"`
	Status     string     `gorm:"type:varchar(20);default:'active'" json:"status"`
	StartDate  *time.Time `json:"startDate"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type CalendarEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"index;not null" json:"customerId"`
	Title      string    `gorm:"not null" json:"title"`
	StartsAt   time.Time `json:"startsAt"`
	EndsAt     time.Time `json:"endsAt"`
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&Customer{},
		&Tag{},
		&CustomerTag{},
		&Account{},
		&Invoice{},
		&InvoiceItem{},
		&Payment{},
		&Estimate{},
		&Proposal{},
		&Contract{},
		&Deal{},
		&Project{},
		&ProjectDiscussion{},
		&Interaction{},
		&Lead{},
		&CoachingProgram{},
		&CalendarEvent{},
	}
}
