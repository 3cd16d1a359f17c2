package models

import (
	"fmt"
	"time"
)

type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Color     string    `gorm:"type:varchar(20)" json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// CustomerTag links one Tag to one Customer. The ID is derived from the pair
// so assigning the same tag twice is a no-op.
type CustomerTag struct {
	ID         string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	CustomerID uint      `gorm:"index;not null" json:"customerId"`
	TagID      uint      `gorm:"index;not null" json:"tagId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func CustomerTagID(customerID, tagID uint) string {
	return fmt.Sprintf("%d_%d", customerID, tagID)
}

func NewCustomerTag(customerID, tagID uint) CustomerTag {
	return CustomerTag{
		ID:         CustomerTagID(customerID, tagID),
		CustomerID: customerID,
		TagID:      tagID,
	}
}
