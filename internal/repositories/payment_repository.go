package repositories

import (
	"errors"
	"time"

	"afiliados_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPaymentNotFound = errors.New("payment event not found")

type PaymentRepository interface {
	// CreateOrGet inserts the payment event, or returns the existing row
	// when the (rail, external_ref) pair was already recorded. The unique
	// index is the serialization point for concurrent duplicate deliveries.
	CreateOrGet(p *models.PaymentEvent) (*models.PaymentEvent, bool, error)

	FindByID(id string) (*models.PaymentEvent, error)
	FindByExternalRef(rail models.PaymentRail, ref string) (*models.PaymentEvent, error)
	Update(p *models.PaymentEvent) error
	MarkCommissionSettled(id string, at time.Time) error

	// FindConfirmedUnsettled returns confirmed payments without a committed
	// commission pass; the billing worker re-settles them after a crash.
	FindConfirmedUnsettled(limit int) ([]models.PaymentEvent, error)
}

type PaymentRepositoryImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &PaymentRepositoryImpl{db: db}
}

func (r *PaymentRepositoryImpl) CreateOrGet(p *models.PaymentEvent) (*models.PaymentEvent, bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rail"}, {Name: "external_ref"}},
		DoNothing: true,
	}).Create(p)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return p, true, nil
	}

	existing, err := r.FindByExternalRef(p.Rail, p.ExternalRef)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *PaymentRepositoryImpl) FindByID(id string) (*models.PaymentEvent, error) {
	var p models.PaymentEvent
	err := r.db.First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepositoryImpl) FindByExternalRef(rail models.PaymentRail, ref string) (*models.PaymentEvent, error) {
	var p models.PaymentEvent
	err := r.db.Where("rail = ? AND external_ref = ?", rail, ref).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepositoryImpl) Update(p *models.PaymentEvent) error {
	result := r.db.Save(p)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepositoryImpl) MarkCommissionSettled(id string, at time.Time) error {
	return r.db.Model(&models.PaymentEvent{}).
		Where("id = ?", id).
		Update("commission_settled_at", at).Error
}

func (r *PaymentRepositoryImpl) FindConfirmedUnsettled(limit int) ([]models.PaymentEvent, error) {
	var payments []models.PaymentEvent
	err := r.db.Where("status = ? AND commission_settled_at IS NULL",
		models.PaymentStatusConfirmed).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
