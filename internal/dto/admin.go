package dto

import "time"

type AdminUserItem struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	ReferralCode string    `json:"referralCode"`
	Disabled     bool      `json:"disabled"`
	Plan         string    `json:"plan"`
	CreatedAt    time.Time `json:"createdAt"`
}

type AdminUserListResponse struct {
	Users []AdminUserItem `json:"users"`
	Total int64           `json:"total"`
}

type AdminUpdateUserRequest struct {
	Disabled *bool `json:"disabled" validate:"required"`
}
