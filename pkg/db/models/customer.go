package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/paysync/pkg/enums"
)

// Customer maps an application owner to its account at a payment processor.
type Customer struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerType     string          `gorm:"column:owner_type;not null"`
	OwnerID       string          `gorm:"column:owner_id;not null"`
	Processor     enums.Processor `gorm:"column:processor;not null;uniqueIndex:idx_pay_customers_processor"`
	ProcessorID   string          `gorm:"column:processor_id;not null;uniqueIndex:idx_pay_customers_processor"`
	StripeAccount *string         `gorm:"column:stripe_account"`
	IsDefault     bool            `gorm:"column:is_default;not null;default:false"`
	Data          json.RawMessage `gorm:"column:data;type:jsonb"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Customer) TableName() string { return "pay_customers" }
