package dto

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required,min=2,max=120"`

	// ReferralCode attaches the new account to its referrer. The client
	// passes it explicitly; the core never reads client-side storage.
	ReferralCode string `json:"referral_code,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string          `json:"access_token"`
	Account     ProfileResponse `json:"account"`
}

type ProfileResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	ReferralCode string `json:"referral_code"`
	Disabled     bool   `json:"disabled"`
	CreatedAt    string `json:"created_at"`
}
