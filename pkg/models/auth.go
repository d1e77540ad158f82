package models

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	Name         string `json:"name" validate:"required,min=2"`
	ReferralCode string `json:"referral_code,omitempty" validate:"omitempty,max=16"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}

// ApplyReferralRequest represents a request to redeem a referral code
type ApplyReferralRequest struct {
	Code  string `json:"code" validate:"required,max=16"`
	Email string `json:"email" validate:"required,email"`
}

// InviteRequest represents a request to send a referral invitation email
type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
