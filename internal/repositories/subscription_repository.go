package repositories

import (
	"errors"
	"time"

	"afiliados_backend/internal/models"

	"gorm.io/gorm"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	Update(sub *models.Subscription) error

	// FindCurrentByAccountID returns the newest subscription record of the
	// account. Canceled records are terminal but remain the "current" record
	// until a fresh one is created by re-subscription.
	FindCurrentByAccountID(accountID string) (*models.Subscription, error)
	FindByExternalSubID(externalSubID string) (*models.Subscription, error)

	// FindActiveDue returns active subscriptions whose cycle ended before now.
	FindActiveDue(now time.Time) ([]models.Subscription, error)
	// FindPastDueBefore returns past_due subscriptions older than the deadline.
	FindPastDueBefore(deadline time.Time) ([]models.Subscription, error)

}

type SubscriptionRepositoryImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{db: db}
}

func (r *SubscriptionRepositoryImpl) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *SubscriptionRepositoryImpl) Update(sub *models.Subscription) error {
	result := r.db.Save(sub)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepositoryImpl) FindCurrentByAccountID(accountID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepositoryImpl) FindByExternalSubID(externalSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("external_sub_id = ?", externalSubID).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepositoryImpl) FindActiveDue(now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status = ? AND cycle_end IS NOT NULL AND cycle_end < ?",
		models.SubscriptionStatusActive, now).
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepositoryImpl) FindPastDueBefore(deadline time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status = ? AND past_due_since < ?",
		models.SubscriptionStatusPastDue, deadline).
		Find(&subs).Error
	return subs, err
}
