package auth

import (
	"errors"
	"time"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/session"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrMissingTokens    = errors.New("server response is missing tokens")
)

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	CountryID   int64  `json:"countryId" validate:"required"`
}

// LoginRequest is the body of POST /auth/login. LoginIdentifier is a
// username or an email.
type LoginRequest struct {
	LoginIdentifier string `json:"loginIdentifier" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
}

// VerifyRequest is the body of POST /auth/verify
type VerifyRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Token      string `json:"token" validate:"required"`
}

// ResendVerificationRequest is the body of POST /auth/resend-verification
type ResendVerificationRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

// UpdateProfileRequest is the body of PUT /profile. Empty fields are left
// unchanged by the server.
type UpdateProfileRequest struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	DateFormat  string `json:"dateFormat,omitempty"`
}

// ChangePasswordRequest is the body of POST /profile/change-password
type ChangePasswordRequest struct {
	CurrentPassword      string `json:"currentPassword" validate:"required"`
	NewPassword          string `json:"newPassword" validate:"required,min=8"`
	ConfirmationPassword string `json:"confirmationPassword" validate:"required,eqfield=NewPassword"`
}

// TokenPair is the authentication response of login, verify and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (p TokenPair) credentials() session.Credentials {
	return session.Credentials{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}

// Status summarizes the local session without touching the network
type Status struct {
	Authenticated bool
	Profile       *session.Profile
	// AccessTokenExpiry is zero when the token carries no readable exp claim
	AccessTokenExpiry time.Time
	// Expired is true when the access token is within the expiry buffer;
	// the next request will go through a refresh.
	Expired bool
}
