package repositories

import (
	"afiliados_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommissionRepository interface {
	// InsertIdempotent writes the commission event unless one already exists
	// for the same (payment_event_id, beneficiary_id, level). Returns whether
	// a row was actually inserted.
	InsertIdempotent(ev *models.CommissionEvent) (bool, error)

	FindByPaymentEvent(paymentEventID string) ([]models.CommissionEvent, error)
	FindByBeneficiary(beneficiaryID string, limit int) ([]models.CommissionEvent, error)
	SumPayableByBeneficiary(beneficiaryID string) (float64, error)
	SumAllByBeneficiary(beneficiaryID string) (float64, error)
}

type CommissionRepositoryImpl struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &CommissionRepositoryImpl{db: db}
}

func (r *CommissionRepositoryImpl) InsertIdempotent(ev *models.CommissionEvent) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "payment_event_id"},
			{Name: "beneficiary_id"},
			{Name: "level"},
		},
		DoNothing: true,
	}).Create(ev)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *CommissionRepositoryImpl) FindByPaymentEvent(paymentEventID string) ([]models.CommissionEvent, error) {
	var events []models.CommissionEvent
	err := r.db.Where("payment_event_id = ?", paymentEventID).
		Order("level ASC").
		Find(&events).Error
	return events, err
}

func (r *CommissionRepositoryImpl) FindByBeneficiary(beneficiaryID string, limit int) ([]models.CommissionEvent, error) {
	var events []models.CommissionEvent
	err := r.db.Where("beneficiary_id = ?", beneficiaryID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *CommissionRepositoryImpl) SumPayableByBeneficiary(beneficiaryID string) (float64, error) {
	var total float64
	err := r.db.Model(&models.CommissionEvent{}).
		Where("beneficiary_id = ? AND payable = true", beneficiaryID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *CommissionRepositoryImpl) SumAllByBeneficiary(beneficiaryID string) (float64, error) {
	var total float64
	err := r.db.Model(&models.CommissionEvent{}).
		Where("beneficiary_id = ?", beneficiaryID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
