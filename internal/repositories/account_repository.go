package repositories

import (
	"errors"

	"afiliados_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrReferralCodeTaken    = errors.New("referral code already taken")
	ErrReferrerNotFound     = errors.New("referral code does not resolve to an account")
	ErrCycleDetected        = errors.New("attach would create a referral cycle")
	ErrAlreadyAttached      = errors.New("account already has a referrer")
)

type AccountRepository interface {
	Create(account *models.Account) error
	FindByID(id string) (*models.Account, error)
	FindByEmail(email string) (*models.Account, error)
	FindByReferralCode(code string) (*models.Account, error)
	FindByReferredBy(parentID string) ([]models.Account, error)
	FindAll(limit, offset int) ([]models.Account, error)
	CountAll() (int64, error)
	SetDisabled(id string, disabled bool) error
	Delete(id string) error

	// Attach sets child.referred_by to the account owning parentCode inside
	// a single transaction. The child, the referrer and every ancestor on
	// the referrer's chain are row-locked for the duration, so a concurrent
	// reverse attach cannot slip a cycle past the check.
	Attach(childID, parentCode string) error
}

type AccountRepositoryImpl struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{db: db}
}

// Create inserts the account, relying on the unique indexes to arbitrate
// races. A duplicate-key error is disambiguated after the fact: if the email
// is already registered the caller must bail, while a referral-code collision
// is retryable with a fresh code.
func (r *AccountRepositoryImpl) Create(account *models.Account) error {
	err := r.db.Create(account).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var count int64
		if countErr := r.db.Model(&models.Account{}).
			Where("email = ?", account.Email).
			Count(&count).Error; countErr == nil && count > 0 {
			return ErrAccountAlreadyExists
		}
		return ErrReferralCodeTaken
	}
	return err
}

func (r *AccountRepositoryImpl) FindByID(id string) (*models.Account, error) {
	var account models.Account
	err := r.db.First(&account, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepositoryImpl) FindByEmail(email string) (*models.Account, error) {
	var account models.Account
	err := r.db.First(&account, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepositoryImpl) FindByReferralCode(code string) (*models.Account, error) {
	var account models.Account
	err := r.db.First(&account, "referral_code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepositoryImpl) FindByReferredBy(parentID string) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.Where("referred_by = ?", parentID).Order("created_at DESC").Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepositoryImpl) FindAll(limit, offset int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepositoryImpl) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&models.Account{}).Count(&count).Error
	return count, err
}

func (r *AccountRepositoryImpl) SetDisabled(id string, disabled bool) error {
	result := r.db.Model(&models.Account{}).Where("id = ?", id).Update("disabled", disabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Delete removes the account and its subscription rows in one transaction,
// so a crash cannot leave orphaned subscriptions behind.
func (r *AccountRepositoryImpl) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Account{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return tx.Delete(&models.Subscription{}, "account_id = ?", id).Error
	})
}

func (r *AccountRepositoryImpl) Attach(childID, parentCode string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var child models.Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&child, "id = ?", childID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if child.ReferredBy != nil {
			return ErrAlreadyAttached
		}

		var parent models.Account
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&parent, "referral_code = ?", parentCode).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReferrerNotFound
			}
			return err
		}
		if parent.ID == child.ID {
			return ErrCycleDetected
		}

		// Walk the referrer's ancestry under lock. Reaching the child means
		// the new edge would close a cycle. A dangling pointer ends the walk.
		current := parent
		for current.ReferredBy != nil {
			var ancestor models.Account
			err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&ancestor, "id = ?", *current.ReferredBy).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					break
				}
				return err
			}
			if ancestor.ID == child.ID {
				return ErrCycleDetected
			}
			current = ancestor
		}

		return tx.Model(&models.Account{}).
			Where("id = ? AND referred_by IS NULL", child.ID).
			Update("referred_by", parent.ID).Error
	})
}
