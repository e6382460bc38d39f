package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription persists processor subscription state per customer. Status is
// stored as the processor reports it.
type Subscription struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID         uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:idx_pay_subscriptions_customer_processor"`
	Name               string     `gorm:"column:name;not null;default:'default'"`
	ProcessorID        string     `gorm:"column:processor_id;not null;uniqueIndex:idx_pay_subscriptions_customer_processor"`
	ProcessorPlan      string     `gorm:"column:processor_plan;not null"`
	Quantity           int        `gorm:"column:quantity;not null;default:1"`
	Status             string     `gorm:"column:status;not null"`
	CurrentPeriodStart *time.Time `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end"`
	EndsAt             *time.Time `gorm:"column:ends_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string { return "pay_subscriptions" }
