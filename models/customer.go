package models

import (
	"strings"
	"time"
)

// Customer types
const (
	CustomerTypeCompany    = "company"
	CustomerTypeIndividual = "individual"
	CustomerTypeExport     = "export"
	CustomerTypeImport     = "import"
	CustomerTypeCoaching   = "coaching"
)

// Customer statuses
const (
	CustomerStatusActive   = "active"
	CustomerStatusInactive = "inactive"
	CustomerStatusLead     = "lead"
	CustomerStatusCustomer = "customer"
	CustomerStatusPartner  = "partner"
)

// Customer model bucket bounds
const (
	MinCustomerModel = 1
	MaxCustomerModel = 9
)

var CustomerTypes = []string{
	CustomerTypeCompany,
	CustomerTypeIndividual,
	CustomerTypeExport,
	CustomerTypeImport,
	CustomerTypeCoaching,
}

var CustomerStatuses = []string{
	CustomerStatusActive,
	CustomerStatusInactive,
	CustomerStatusLead,
	CustomerStatusCustomer,
	CustomerStatusPartner,
}

type Customer struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UniqueKey string `gorm:"type:varchar(320);uniqueIndex;not null" json:"uniqueKey"`

	Name        string `gorm:"not null" json:"name"`
	Type        string `gorm:"type:varchar(20);not null;default:'company'" json:"type"`
	Status      string `gorm:"type:varchar(20);not null;default:'lead'" json:"status"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CompanyName string `gorm:"index" json:"companyName"`
	Address     string `json:"address"`
	Website     string `json:"website"`
	Score       int    `gorm:"default:0" json:"score"`
	Category    string `json:"category"`
	Notes       string `gorm:"type:text" json:"notes"`

	// CustomerModel is nil or within [MinCustomerModel, MaxCustomerModel].
	CustomerModel *int   `gorm:"index" json:"customerModel"`
	JourneyStage  string `gorm:"type:varchar(50)" json:"journeyStage"`
	CoachID       *uint  `gorm:"index" json:"coachId"`

	CreatedByID *uint     `gorm:"index" json:"createdById"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AccountKey is the string an Account is matched on: the company name when
// present, otherwise the customer's own name.
func (c *Customer) AccountKey() string {
	if strings.TrimSpace(c.CompanyName) != "" {
		return c.CompanyName
	}
	return c.Name
}

func ValidCustomerType(t string) bool {
	return contains(CustomerTypes, t)
}

func ValidCustomerStatus(s string) bool {
	return contains(CustomerStatuses, s)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
