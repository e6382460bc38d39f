package charges

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/paysync/pkg/db"
	"github.com/angelmondragon/paysync/pkg/db/models"
	"github.com/angelmondragon/paysync/pkg/enums"
)

const defaultReconcileLimit = 250

// Repository is the gorm-backed Store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// WithTx binds the repository to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindCustomer(ctx context.Context, processor enums.Processor, processorID string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("processor = ? AND processor_id = ?", processor, processorID).
		Take(&customer).Error
	return found(&customer, err)
}

func (r *Repository) FindCharge(ctx context.Context, customerID uuid.UUID, processorID string) (*models.Charge, error) {
	var charge models.Charge
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND processor_id = ?", customerID, processorID).
		Take(&charge).Error
	return found(&charge, err)
}

func (r *Repository) FindChargeByID(ctx context.Context, id uuid.UUID) (*models.Charge, error) {
	var charge models.Charge
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&charge).Error
	return found(&charge, err)
}

// FindChargeByProcessorID looks a charge up by its Stripe id alone.
func (r *Repository) FindChargeByProcessorID(ctx context.Context, processorID string) (*models.Charge, error) {
	var charge models.Charge
	err := r.db.WithContext(ctx).Where("processor_id = ?", processorID).Take(&charge).Error
	return found(&charge, err)
}

func (r *Repository) FindSubscription(ctx context.Context, customerID uuid.UUID, processorID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND processor_id = ?", customerID, processorID).
		Take(&sub).Error
	return found(&sub, err)
}

func (r *Repository) CreateCharge(ctx context.Context, charge *models.Charge) error {
	if charge.ID == uuid.Nil {
		charge.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(charge).Error; err != nil {
		if db.IsConstraintViolation(err) {
			return conflictError(err, "create charge")
		}
		return err
	}
	return nil
}

// UpdateChargeUnderLock takes a row lock, writes attrs and replaces charge
// with the stored row, all in one short transaction. Nothing else runs while
// the lock is held.
func (r *Repository) UpdateChargeUnderLock(ctx context.Context, charge *models.Charge, attrs Attributes) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Charge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", charge.ID).
			Take(&locked).Error; err != nil {
			return err
		}
		if err := tx.Model(&locked).Updates(attrs.Columns()).Error; err != nil {
			if db.IsConstraintViolation(err) {
				return conflictError(err, "update charge")
			}
			return err
		}
		// gorm leaves pointer fields alone when the column is NULL, so scan
		// into a zero value rather than into charge
		var reloaded models.Charge
		if err := tx.Where("id = ?", charge.ID).Take(&reloaded).Error; err != nil {
			return err
		}
		*charge = reloaded
		return nil
	})
}

func (r *Repository) UpdateAmountRefunded(ctx context.Context, chargeID uuid.UUID, amount int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Charge{}).
		Where("id = ?", chargeID).
		Update("amount_refunded", amount)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListForReconcile returns charges created on Stripe within lookback, newest
// first. updated_at is bumped by every sync and cannot bound the window.
func (r *Repository) ListForReconcile(ctx context.Context, limit int, lookback time.Duration) ([]models.Charge, error) {
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if lookback > 0 {
		query = query.Where("created_at >= ?", time.Now().UTC().Add(-lookback))
	}
	var charges []models.Charge
	if err := query.Find(&charges).Error; err != nil {
		return nil, err
	}
	return charges, nil
}

func found[T any](row *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
