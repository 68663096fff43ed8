package models

type Account struct {
	BaseModel
	Email        string   `gorm:"uniqueIndex;not null" json:"email"`
	FullName     string   `json:"full_name"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Role         UserRole `gorm:"default:'affiliate'" json:"role"`

	// ReferralCode is generated at creation and never changes.
	ReferralCode string `gorm:"uniqueIndex;not null" json:"referral_code"`

	// ReferredBy is immutable once set. It may dangle after the referrer is
	// hard-deleted; ancestry resolution treats a missing referrer as the end
	// of the chain.
	ReferredBy *string `gorm:"index" json:"referred_by,omitempty"`

	// Disabled blocks future payable commissions, nothing else.
	Disabled bool `gorm:"default:false" json:"disabled"`
}
